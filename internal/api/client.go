package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joebot/vyna/internal/metrics"
)

const (
	// DefaultConnectionPath is used when no connection endpoint is configured.
	DefaultConnectionPath = "/api/connection-details"

	// DefaultOrigin stands in for the page origin the endpoint is resolved against.
	DefaultOrigin = "http://localhost:3000"

	defaultTimeout = 30 * time.Second
)

// Client talks to the connection-details endpoint and the chat backend.
type Client struct {
	connectionURL   string
	chatURL         string
	participantName string
	client          *http.Client
}

// NewClient creates a backend client. endpoint may be absolute or relative to
// origin; empty means DefaultConnectionPath. chatBackend is the base url of
// the chat backend.
func NewClient(origin, endpoint, chatBackend string) (*Client, error) {
	connURL, err := ResolveEndpoint(origin, endpoint)
	if err != nil {
		return nil, err
	}
	if chatBackend == "" {
		chatBackend = DefaultOrigin
	}
	return &Client{
		connectionURL: connURL,
		chatURL:       strings.TrimSuffix(chatBackend, "/") + "/chat",
		client:        &http.Client{Timeout: defaultTimeout},
	}, nil
}

// SetParticipantName asks the backend to join under name. Empty lets the
// backend pick one.
func (c *Client) SetParticipantName(name string) { c.participantName = name }

// ConnectionURL returns the resolved connection-details endpoint.
func (c *Client) ConnectionURL() string { return c.connectionURL }

// ResolveEndpoint resolves endpoint against origin the way a browser resolves
// a relative URL against the page location.
func ResolveEndpoint(origin, endpoint string) (string, error) {
	if origin == "" {
		origin = DefaultOrigin
	}
	if endpoint == "" {
		endpoint = DefaultConnectionPath
	}
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// postJSON sends body as JSON and returns the status code and response body.
func (c *Client) postJSON(ctx context.Context, endpoint, target string, body any) (int, []byte, error) {
	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}
