package runner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evanmar/deployr/internal/config"
)

func testConfig(t *testing.T, historyPath string) *config.FileConfig {
	t.Helper()
	fc := &config.FileConfig{
		Services: []config.ServiceConfig{{
			Name:         "app-server",
			Identifier:   "definitely-not-running-deployr-test",
			StartCommand: "true",
		}},
	}
	if historyPath != "" {
		fc.History = &config.HistoryConfig{Path: historyPath}
	}
	return fc
}

func TestNewWithoutHistory(t *testing.T) {
	r, err := New(testConfig(t, ""))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = r.Close() }()
	if _, err := r.History(context.Background(), "", 10); err == nil {
		t.Fatalf("expected error when no queryable backend configured")
	}
}

func TestNewWithSQLiteHistory(t *testing.T) {
	r, err := New(testConfig(t, filepath.Join(t.TempDir(), "h.db")))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = r.Close() }()
	recs, err := r.History(context.Background(), "app-server", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty history, got %d", len(recs))
	}
}

func TestUnknownServiceErrors(t *testing.T) {
	r, err := New(testConfig(t, ""))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = r.Close() }()
	ctx := context.Background()
	if _, err := r.Stop(ctx, "nope"); err == nil {
		t.Fatalf("expected unknown service error from Stop")
	}
	if _, err := r.Status(ctx, "nope"); err == nil {
		t.Fatalf("expected unknown service error from Status")
	}
	if _, err := r.Deploy(ctx, "nope", "", true); err == nil {
		t.Fatalf("expected unknown service error from Deploy")
	}
}

func TestStopLocalAbsentProcess(t *testing.T) {
	r, err := New(testConfig(t, ""))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = r.Close() }()
	res, err := r.Stop(context.Background(), "app-server")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res.Found {
		t.Fatalf("identifier should not match any process")
	}
}
