package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deployr.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const sampleConfig = `
env = ["APP_ENV=prod"]
step_timeout = "15s"

[log]
level = "debug"

[history]
path = "/var/lib/deployr/history.db"

[server]
listen = ":9090"
base_path = "/api"

[[services]]
name = "app-server"
identifier = "uvicorn main:app"
start_command = "python3 main.py"
update_command = "git pull --ff-only"
workdir = "/srv/app"
env = ["PORT=8000"]
session = "backend"
publish_dir = "./backend"

[services.host]
addr = "deploy@prod"
port = 2222
options = ["ConnectTimeout=5"]

[services.probe]
url = "http://prod:8000/status"
timeout = "5s"
interval = "1s"
`

func TestLoad(t *testing.T) {
	fc, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.StepTimeout != 15*time.Second {
		t.Fatalf("step_timeout=%v", fc.StepTimeout)
	}
	if fc.Log == nil || fc.Log.Level != "debug" {
		t.Fatalf("log config not parsed: %+v", fc.Log)
	}
	if fc.History.EffectiveDSN() != "/var/lib/deployr/history.db" {
		t.Fatalf("history dsn=%q", fc.History.EffectiveDSN())
	}
	if fc.Server == nil || fc.Server.Listen != ":9090" || fc.Server.BasePath != "/api" {
		t.Fatalf("server config not parsed: %+v", fc.Server)
	}
	sc, err := fc.FindService("app-server")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	spec := sc.Spec()
	if spec.Identifier != "uvicorn main:app" || spec.Host.Addr != "deploy@prod" || spec.Host.Port != 2222 {
		t.Fatalf("spec mismatch: %+v", spec)
	}
	if spec.Probe.URL != "http://prod:8000/status" || spec.Probe.Timeout != 5*time.Second || spec.Probe.Interval != time.Second {
		t.Fatalf("probe mismatch: %+v", spec.Probe)
	}
	if sc.PublishDir != "./backend" {
		t.Fatalf("publish_dir=%q", sc.PublishDir)
	}
}

func TestLoadRejectsInvalidService(t *testing.T) {
	if _, err := Load(writeConfig(t, "[[services]]\nname = \"x\"\n")); err == nil {
		t.Fatalf("expected error for service without start_command")
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	body := `
[[services]]
name = "x"
start_command = "true"
[[services]]
name = "x"
start_command = "true"
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected error for duplicate service names")
	}
}

func TestFindServiceDefaultsToSingle(t *testing.T) {
	fc, err := Load(writeConfig(t, "[[services]]\nname = \"only\"\nstart_command = \"true\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sc, err := fc.FindService("")
	if err != nil || sc.Name != "only" {
		t.Fatalf("empty name should resolve the single service: %v %v", sc.Name, err)
	}
	if _, err := fc.FindService("nope"); err == nil {
		t.Fatalf("expected unknown service error")
	}
}

func TestGlobalEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "extra.env")
	if err := os.WriteFile(envFile, []byte("# comment\nA=file\nB=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fc := &FileConfig{
		Env:      []string{"B=toml"},
		EnvFiles: []string{envFile},
	}
	got, err := fc.GlobalEnv()
	if err != nil {
		t.Fatalf("global env: %v", err)
	}
	if len(got) != 2 || got[0] != "A=file" || got[1] != "B=toml" {
		t.Fatalf("precedence wrong: %v", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	fc := &FileConfig{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}
	if _, err := fc.GlobalEnv(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestSpecDefaultsUpdateCommandForGitServices(t *testing.T) {
	sc := ServiceConfig{Name: "web", StartCommand: "./run", PublishDir: "./backend"}
	if got := sc.Spec().UpdateCommand; got != "git pull --ff-only" {
		t.Fatalf("update command = %q", got)
	}
	sc.UpdateCommand = "svn up"
	if got := sc.Spec().UpdateCommand; got != "svn up" {
		t.Fatalf("override lost: %q", got)
	}
	plain := ServiceConfig{Name: "web", StartCommand: "./run"}
	if got := plain.Spec().UpdateCommand; got != "" {
		t.Fatalf("non-git service gained update command %q", got)
	}
}
