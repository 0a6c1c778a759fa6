package factory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanmar/deployr/internal/history"
)

func TestNewSinkFromDSNErrors(t *testing.T) {
	if _, err := NewSinkFromDSN(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := NewSinkFromDSN("redis://localhost"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestNewSinkFromDSNSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	for _, dsn := range []string{path, "sqlite://" + path} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("sqlite dsn %q: %v", dsn, err)
		}
		now := time.Now().UTC()
		err = sink.Send(context.Background(), history.Record{
			Service: "api", Host: "local", State: "healthy", Healthy: true,
			StartedAt: now, FinishedAt: now,
		})
		if err != nil {
			t.Fatalf("send via %q: %v", dsn, err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}
