// Command rtcagent runs a single base agent process: it loads its
// environment configuration (spec.md §6), builds the property store, wires
// up transport streams, and drives the duty-cycle loop until SIGINT/SIGTERM
// (spec.md §6's runner invariants: on_start, then do_work in a loop, then
// on_close; SIGINT triggers graceful shutdown via on_close).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgamroth/rtcagent/internal/config"
	"github.com/dgamroth/rtcagent/internal/counters"
	"github.com/dgamroth/rtcagent/internal/properties"
	"github.com/dgamroth/rtcagent/internal/propgen"
	"github.com/dgamroth/rtcagent/internal/transport"
	"github.com/dgamroth/rtcagent/pkg/rtcagent"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "rtcagent",
		Short: "Run a real-time control agent process",
	}
	root.PersistentFlags().StringVar(&logLevel, "log.level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(&logLevel))
	root.AddCommand(newValidateConfigCmd())
	root.AddCommand(newPropgenCmd())
	return root
}

func newRunCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load configuration from the environment and run the agent until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(*logLevel)
		},
	}
}

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and print the environment configuration without starting the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return err
			}
			fmt.Printf("block_name=%s block_id=%s status=%s/%s control=%s/%s pub_streams=%d sub_streams=%d metrics=%s\n",
				cfg.BlockName, cfg.BlockID, cfg.StatusURI, cfg.StatusStreamID, cfg.ControlURI, cfg.ControlStreamID,
				len(cfg.PubStreams), len(cfg.SubStreams), cfg.MetricsListenAddr)
			return nil
		},
	}
}

func newPropgenCmd() *cobra.Command {
	var manifestPath, outPath, pkg, funcName string
	cmd := &cobra.Command{
		Use:   "propgen",
		Short: "Render a YAML property manifest into a Go descriptor-list source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropgen(manifestPath, outPath, pkg, funcName)
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the YAML property manifest")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the generated Go source")
	cmd.Flags().StringVar(&pkg, "package", "properties", "package name for the generated file")
	cmd.Flags().StringVar(&funcName, "func", "Descriptors", "name of the generated descriptor-list function")
	return cmd
}

func buildLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	runID := uuid.New().String()
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("run_id", runID)
}

func runAgent(logLevel string) error {
	logger := buildLogger(logLevel)

	envCfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The concrete wire transport is an external collaborator (spec.md §1);
	// this runner wires an in-memory demo link per configured stream so the
	// agent can be exercised end to end without a real message bus.
	streams := &transport.Set{}
	statusLink := transport.NewMemoryLink(envCfg.StatusStreamID, 64)
	streams.Pub = append(streams.Pub, statusLink.Publication())
	statusStreamIndex := len(streams.Pub)

	controlLink := transport.NewMemoryLink(envCfg.ControlStreamID, 64)
	streams.Sub = append(streams.Sub, controlLink.Subscription())

	for _, ref := range envCfg.PubStreams {
		link := transport.NewMemoryLink(ref.StreamID, 64)
		streams.Pub = append(streams.Pub, link.Publication())
	}
	for _, ref := range envCfg.SubStreams {
		link := transport.NewMemoryLink(ref.StreamID, 64)
		streams.Sub = append(streams.Sub, link.Subscription())
	}

	blockID, err := strconv.ParseInt(envCfg.BlockID, 10, 64)
	if err != nil {
		return fmt.Errorf("BLOCK_ID must be a 64-bit integer: %w", err)
	}

	agentCfg := rtcagent.Config{
		BlockName:           envCfg.BlockName,
		BlockID:             blockID,
		HeartbeatPeriodNs:   envCfg.HeartbeatPeriod.Nanoseconds(),
		LateMessageThreshNs: envCfg.LateMessageThreshold.Nanoseconds(),
		StatsPeriodNs:       envCfg.StatsPeriod.Nanoseconds(),
		GCStatsPeriodNs:     envCfg.GCStatsPeriod.Nanoseconds(),
	}

	agent := rtcagent.New(agentCfg, properties.PlaybackDescriptors(), streams, statusStreamIndex, nil, logger)

	reg := counters.NewRegistry(agent.Counters(), agent.Labels())
	if envCfg.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Addr: envCfg.MetricsListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err.Error())
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent.OnStart()
	defer agent.OnClose()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			agent.Shutdown()
			return nil
		case <-ticker.C:
			agent.DoWork()
			if agent.Terminated() {
				return nil
			}
		}
	}
}

func runPropgen(manifestPath, outPath, pkg, funcName string) error {
	if manifestPath == "" || outPath == "" {
		return fmt.Errorf("both --manifest and --out are required")
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := propgen.ParseManifest(data)
	if err != nil {
		return err
	}
	src, err := propgen.Generate(manifest, propgen.Options{
		Package:        pkg,
		FuncName:       funcName,
		SourceManifest: manifestPath,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, src, 0o644)
}
