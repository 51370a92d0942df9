// Command rtcagent-propgen renders a YAML property manifest into a Go
// source file defining a property.Descriptor list, per spec.md §9's
// "macro-generated property stores re-architected as build-script code
// generation".
//
// Usage:
//
//	rtcagent-propgen -manifest properties/playback.yaml -out internal/properties/playback_gen.go -package properties -func PlaybackDescriptors
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dgamroth/rtcagent/internal/propgen"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rtcagent-propgen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var manifestPath, outPath, pkg, funcName string
	flag.StringVar(&manifestPath, "manifest", "", "path to the YAML property manifest")
	flag.StringVar(&outPath, "out", "", "path to write the generated Go source")
	flag.StringVar(&pkg, "package", "properties", "package name for the generated file")
	flag.StringVar(&funcName, "func", "Descriptors", "name of the generated descriptor-list function")
	flag.Parse()

	if manifestPath == "" || outPath == "" {
		flag.Usage()
		return fmt.Errorf("both -manifest and -out are required")
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
	if err := os.WriteFile(outPath, src, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
