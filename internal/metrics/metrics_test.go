package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncDeploy("api", "healthy")
	IncStop("api", true)
	IncStop("api", false)
	IncStart("api")
	IncProbeAttempt("api")
	ObserveDeployDuration("api", 1.25)
	RecordStateTransition("api", "starting", "verifying")
	SetCurrentState("api", "verifying", true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"deployr_deploy_runs_total":              false,
		"deployr_deploy_stops_total":             false,
		"deployr_deploy_starts_total":            false,
		"deployr_probe_attempts_total":           false,
		"deployr_deploy_duration_seconds":        false,
		"deployr_deploy_state_transitions_total": false,
		"deployr_deploy_current_state":           false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestStopFoundLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	IncStop("web", true)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "deployr_deploy_stops_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "found" && l.GetValue() == "true" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected stops_total sample with found=true")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	_ = Register(prometheus.DefaultRegisterer)
	IncDeploy("handler-test", "healthy")
	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "deployr_deploy_runs_total") {
		t.Fatalf("metrics endpoint missing collector output (status %d)", resp.StatusCode)
	}
}
