package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/evanmar/deployr/internal/logger"
	"github.com/evanmar/deployr/internal/service"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Env         []string        `toml:"env" mapstructure:"env"`
	EnvFiles    []string        `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv    bool            `toml:"use_os_env" mapstructure:"use_os_env"`
	StepTimeout time.Duration   `toml:"step_timeout" mapstructure:"step_timeout"`
	Log         *logger.Config  `toml:"log" mapstructure:"log"`
	History     *HistoryConfig  `toml:"history" mapstructure:"history"`
	Server      *ServerConfig   `toml:"server" mapstructure:"server"`
	Services    []ServiceConfig `toml:"services" mapstructure:"services"`
}

// HistoryConfig selects where deploy records go. DSN formats are
// handled by the history factory; Path is a sqlite shorthand.
type HistoryConfig struct {
	DSN  string `toml:"dsn" mapstructure:"dsn"`
	Path string `toml:"path" mapstructure:"path"`
}

// EffectiveDSN resolves the configured destination, Path winning as
// the sqlite shorthand.
func (h *HistoryConfig) EffectiveDSN() string {
	if h == nil {
		return ""
	}
	if h.Path != "" {
		return h.Path
	}
	return h.DSN
}

// ServerConfig configures the optional HTTP API.
type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// ServiceConfig is one [[services]] entry. The embedded fields map
// 1:1 onto service.Spec; PublishDir is the local git directory the
// deploy command pushes before touching the host.
type ServiceConfig struct {
	Name          string              `toml:"name" mapstructure:"name"`
	Identifier    string              `toml:"identifier" mapstructure:"identifier"`
	StartCommand  string              `toml:"start_command" mapstructure:"start_command"`
	UpdateCommand string              `toml:"update_command" mapstructure:"update_command"`
	WorkDir       string              `toml:"workdir" mapstructure:"workdir"`
	Env           []string            `toml:"env" mapstructure:"env"`
	Session       string              `toml:"session" mapstructure:"session"`
	Host          service.HostConfig  `toml:"host" mapstructure:"host"`
	Probe         service.ProbeConfig `toml:"probe" mapstructure:"probe"`
	PublishDir    string              `toml:"publish_dir" mapstructure:"publish_dir"`
}

// Spec converts the entry into the core spec value. Git-backed
// services (publish_dir set) refresh the remote checkout with a
// fast-forward pull unless an update_command overrides it.
func (sc ServiceConfig) Spec() service.Spec {
	update := sc.UpdateCommand
	if update == "" && sc.PublishDir != "" {
		update = "git pull --ff-only"
	}
	return service.Spec{
		Name:          sc.Name,
		Identifier:    sc.Identifier,
		StartCommand:  sc.StartCommand,
		UpdateCommand: update,
		WorkDir:       sc.WorkDir,
		Env:           sc.Env,
		Session:       sc.Session,
		Host:          sc.Host,
		Probe:         sc.Probe,
	}
}

// Load parses the TOML config at path and validates every service
// entry.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fc.Services))
	for _, sc := range fc.Services {
		spec := sc.Spec()
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("duplicate service name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return &fc, nil
}

// FindService returns the entry with the given name. An empty name
// with exactly one configured service returns that service.
func (fc *FileConfig) FindService(name string) (ServiceConfig, error) {
	if name == "" {
		if len(fc.Services) == 1 {
			return fc.Services[0], nil
		}
		return ServiceConfig{}, fmt.Errorf("service name required (%d services configured)", len(fc.Services))
	}
	for _, sc := range fc.Services {
		if sc.Name == name {
			return sc, nil
		}
	}
	return ServiceConfig{}, fmt.Errorf("unknown service: %s", name)
}

// GlobalEnv merges env from config: optional OS env as base, then
// env_files contents in order, then the top-level env list last.
func (fc *FileConfig) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if k == "" {
			return
		}
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i > 0 {
				set(kv[:i], kv[i+1:])
			}
		}
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			if i := strings.IndexByte(kv, '='); i > 0 {
				set(kv[:i], kv[i+1:])
			}
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set(kv[:i], kv[i+1:])
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// LoadEnvFile parses a simple .env file and returns "KEY=VALUE"
// entries in file order.
func LoadEnvFile(path string) ([]string, error) {
	return loadEnvFile(path)
}

// loadEnvFile parses KEY=VALUE lines (no export, no quotes). Lines
// starting with # are ignored.
func loadEnvFile(path string) ([]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			out = append(out, k+"="+v)
		}
	}
	return out, nil
}
