package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

func TestHTTPProbe_Reachable(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNoContent, http.StatusFound, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status == http.StatusFound {
				w.Header().Set("Location", "/elsewhere")
			}
			w.WriteHeader(status)
		}))

		p := NewHTTPProbe(DefaultConfig(server.URL))
		if err := p.Reachable(context.Background()); err != nil {
			t.Errorf("status %d: expected reachable, got %v", status, err)
		}
		server.Close()
	}
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewHTTPProbe(DefaultConfig(url))
	err := p.Reachable(context.Background())
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestHTTPProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	p := NewHTTPProbe(Config{URL: server.URL, Timeout: 50 * time.Millisecond})
	err := p.Reachable(context.Background())
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable on timeout, got %v", err)
	}
}

func TestHTTPProbe_InvalidURL(t *testing.T) {
	p := NewHTTPProbe(Config{URL: "://bad"})
	err := p.Reachable(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if p.httpClient.Timeout != 5*time.Second {
		t.Errorf("expected default timeout, got %v", p.httpClient.Timeout)
	}
}
