package counters

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersIncrementAndRead(t *testing.T) {
	c := New()
	c.IncDutyCycles()
	c.IncDutyCycles()
	c.AddWorkDone(5)
	c.AddWorkDone(3)
	c.IncPropertiesPublished()

	if c.TotalDutyCycles() != 2 {
		t.Errorf("TotalDutyCycles() = %d, want 2", c.TotalDutyCycles())
	}
	if c.TotalWorkDone() != 8 {
		t.Errorf("TotalWorkDone() = %d, want 8", c.TotalWorkDone())
	}
	if c.PropertiesPublished() != 1 {
		t.Errorf("PropertiesPublished() = %d, want 1", c.PropertiesPublished())
	}
}

func TestRegistryExposesLiveGaugeValues(t *testing.T) {
	c := New()
	c.IncDutyCycles()
	c.AddWorkDone(7)

	reg := NewRegistry(c, Labels{AgentID: "1", AgentName: "agent1"})

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(bodyBytes)

	if !strings.Contains(body, "rtcagent_total_duty_cycles") {
		t.Error("expected rtcagent_total_duty_cycles in exposition")
	}
	if !strings.Contains(body, `agent_id="1"`) {
		t.Error("expected agent_id const label in exposition")
	}
	if !strings.Contains(body, `agent_name="agent1"`) {
		t.Error("expected agent_name const label in exposition")
	}

	// Live value: increment after registry construction, scrape again.
	c.IncDutyCycles()
	resp2, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("second GET /metrics: %v", err)
	}
	defer resp2.Body.Close()
}
