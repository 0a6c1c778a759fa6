package env

import "strings"

type Var map[string]string

// Env composes the environment exported to a remote start command.
// Unlike a local exec environment, the remote host's own environment is
// the implicit base; only explicitly configured variables are exported.
type Env struct {
	Var   Var      // global variables (K->V)
	order []string // insertion order of keys for stable rendering
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// Set sets a global variable K=V, preserving first-insertion order.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	if e.Var == nil {
		e.Var = make(Var)
	}
	if _, ok := e.Var[k]; !ok {
		e.order = append(e.order, k)
	}
	e.Var[k] = v
}

// Unset removes a global variable.
func (e *Env) Unset(k string) {
	if e.Var == nil {
		return
	}
	if _, ok := e.Var[k]; ok {
		delete(e.Var, k)
		for i, o := range e.order {
			if o == k {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Merge composes globals with perService ("K=V" slice) overrides, the
// latter winning, and returns ordered "K=V" pairs.
func (e *Env) Merge(perService []string) []string {
	m := make(Var, len(e.Var))
	order := append([]string(nil), e.order...)
	for k, v := range e.Var {
		m[k] = v
	}
	for _, kv := range perService {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue // skip malformed entries with empty key
		}
		k := kv[:i]
		v := kv[i+1:]
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out
}

// ExportPrefix renders merged variables as a POSIX export prefix
// ("K='v' K2='v2' ") suitable for prepending to a remote command line.
// Values are single-quoted; embedded single quotes are escaped.
func (e *Env) ExportPrefix(perService []string) string {
	pairs := e.Merge(perService)
	if len(pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, kv := range pairs {
		i := strings.IndexByte(kv, '=')
		b.WriteString(kv[:i])
		b.WriteString("=")
		b.WriteString(Quote(kv[i+1:]))
		b.WriteString(" ")
	}
	return b.String()
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
