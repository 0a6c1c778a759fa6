package probe

import (
	"context"
	"net/http"
	"time"
)

// Prober answers whether a liveness URL currently accepts traffic.
type Prober interface {
	// Check issues one probe and returns the observed status code.
	// A transport error is returned as err with code 0; callers treat
	// both a non-2xx code and an error as "not healthy yet".
	Check(ctx context.Context, url string) (int, error)
}

// HTTP probes a URL with GET requests. The zero value is usable.
type HTTP struct {
	Client *http.Client
}

// NewHTTP returns a prober whose per-request timeout is bounded
// independently of the caller's polling deadline.
func NewHTTP(requestTimeout time.Duration) *HTTP {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	return &HTTP{Client: &http.Client{Timeout: requestTimeout}}
}

func (p *HTTP) Check(ctx context.Context, url string) (int, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Healthy reports whether a probe status code counts as accepting
// traffic (2xx).
func Healthy(code int) bool { return code >= 200 && code < 300 }
