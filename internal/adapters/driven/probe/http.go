package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NetworkProbe = (*HTTPProbe)(nil)

// Config holds probe configuration
type Config struct {
	// URL is fetched to decide whether the terminal is online
	URL string

	// Timeout for the probe request
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(url string) Config {
	return Config{
		URL:     url,
		Timeout: 5 * time.Second,
	}
}

// HTTPProbe implements driven.NetworkProbe with a single GET request.
// Any HTTP response, whatever its status, means the network is up.
type HTTPProbe struct {
	url        string
	httpClient *http.Client
}

// NewHTTPProbe creates a new HTTPProbe
func NewHTTPProbe(cfg Config) *HTTPProbe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPProbe{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Reachable returns nil when the probe URL answered
func (p *HTTPProbe) Reachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid probe url: %v", domain.ErrInvalidInput, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probe failed: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return nil
}
