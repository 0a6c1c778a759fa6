package service

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	s := Spec{Name: "api", StartCommand: "python3 main.py"}
	if err := s.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	s = Spec{StartCommand: "python3 main.py"}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for missing name")
	}
	s = Spec{Name: "api"}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for missing start_command")
	}
	s = Spec{Name: "api", StartCommand: "   ", Identifier: " "}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for blank command and identifier")
	}
}

func TestMatchPatternFallback(t *testing.T) {
	s := Spec{Name: "api", StartCommand: " uvicorn main:app "}
	if got := s.MatchPattern(); got != "uvicorn main:app" {
		t.Fatalf("MatchPattern=%q", got)
	}
	s.Identifier = "main:app"
	if got := s.MatchPattern(); got != "main:app" {
		t.Fatalf("identifier should win, got %q", got)
	}
}

func TestSessionName(t *testing.T) {
	s := Spec{Name: "api"}
	if s.SessionName() != "api" {
		t.Fatalf("default session should be name")
	}
	s.Session = "backend"
	if s.SessionName() != "backend" {
		t.Fatalf("session override ignored")
	}
}

func TestProbeDefaults(t *testing.T) {
	s := Spec{Name: "api"}
	if d := s.ProbeTimeout(5 * time.Second); d != 5*time.Second {
		t.Fatalf("default timeout not applied: %v", d)
	}
	s.Probe.Timeout = time.Second
	s.Probe.Interval = 250 * time.Millisecond
	if d := s.ProbeTimeout(5 * time.Second); d != time.Second {
		t.Fatalf("explicit timeout ignored: %v", d)
	}
	if d := s.ProbeInterval(time.Second); d != 250*time.Millisecond {
		t.Fatalf("explicit interval ignored: %v", d)
	}
}
