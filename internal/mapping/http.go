package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/message-intake/internal/models"
)

const maxResponseBytes = 1 << 20

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption customises the behaviour of the mapping client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used to reach the mapping service.
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client queries the external mapping microservice over HTTP.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

type queryResponse struct {
	Data []models.RoutingTarget `json:"data"`
}

// NewClient constructs a mapping service client.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mapping: base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Query performs GET <base>/mapping with the tuple as query parameters and
// decodes the ordered target list.
func (c *Client) Query(ctx context.Context, query models.MappingQuery) ([]models.RoutingTarget, error) {
	params := url.Values{}
	params.Set("source_type", query.SourceType)
	params.Set("source", query.Source)
	params.Set("content_type", query.ContentType)
	params.Set("message_type", query.MessageType)

	endpoint := c.baseURL + "/mapping?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mapping: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapping: query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("mapping: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapping: query returned status %d", resp.StatusCode)
	}

	var decoded queryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("mapping: decode response: %w", err)
	}

	c.logger.Debug().
		Str("message_type", query.MessageType).
		Int("targets", len(decoded.Data)).
		Msg("mapping query resolved")

	return decoded.Data, nil
}
