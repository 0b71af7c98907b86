package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxErrorBodyBytes = 16 * 1024

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTargetOption customises an HTTP target.
type HTTPTargetOption func(*HTTPTarget)

// WithTargetHTTPClient overrides the HTTP client used for deliveries.
func WithTargetHTTPClient(client HTTPClient) HTTPTargetOption {
	return func(t *HTTPTarget) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// HTTPTarget delivers payloads by POSTing them to a downstream service URL.
type HTTPTarget struct {
	name       string
	url        string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewHTTPTarget constructs an HTTP delivery target.
func NewHTTPTarget(name, url string, timeout time.Duration, logger zerolog.Logger, opts ...HTTPTargetOption) (*HTTPTarget, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("dispatch: target url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	target := &HTTPTarget{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(target)
		}
	}
	return target, nil
}

// Deliver POSTs the payload with the supplied headers. Any non-2xx status is
// a delivery failure.
func (t *HTTPTarget) Deliver(ctx context.Context, payload []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("dispatch: build request for %q: %w", t.name, err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: deliver to %q: %w", t.name, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch: target %q returned status %d: %s", t.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	t.logger.Debug().
		Str("target", t.name).
		Int("status", resp.StatusCode).
		Int("bytes", len(payload)).
		Msg("payload delivered")
	return nil
}
