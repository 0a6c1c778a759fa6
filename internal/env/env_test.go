package env

import (
	"strings"
	"testing"
)

func TestMergeOrderAndOverride(t *testing.T) {
	e := New()
	e.Set("A", "1")
	e.Set("B", "2")
	got := e.Merge([]string{"B=3", "C=4", "=bad", "NOEQ"})
	want := []string{"A=1", "B=3", "C=4"}
	if len(got) != len(want) {
		t.Fatalf("merge len=%d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("merge[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestUnset(t *testing.T) {
	e := New()
	e.Set("A", "1")
	e.Set("B", "2")
	e.Unset("A")
	got := e.Merge(nil)
	if len(got) != 1 || got[0] != "B=2" {
		t.Fatalf("unexpected merge after unset: %v", got)
	}
}

func TestExportPrefixQuoting(t *testing.T) {
	e := New()
	e.Set("MSG", "it's fine")
	p := e.ExportPrefix(nil)
	if !strings.HasPrefix(p, "MSG=") || !strings.HasSuffix(p, " ") {
		t.Fatalf("unexpected prefix: %q", p)
	}
	if !strings.Contains(p, `'\''`) {
		t.Fatalf("single quote not escaped: %q", p)
	}
	if New().ExportPrefix(nil) != "" {
		t.Fatalf("empty env should render empty prefix")
	}
}
