// Package common holds the pieces shared by the provider adapters: the HTTP
// collaborator, the logging transport and sentinel errors.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 30 * time.Second

// HTTPClient is the minimal request surface the adapters depend on.
type HTTPClient interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
	Post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error)
}

// RESTClient implements HTTPClient with JSON request bodies.
type RESTClient struct {
	client *http.Client
}

// NewRESTClient wraps c. A nil c uses a client with DefaultTimeout.
func NewRESTClient(c *http.Client) *RESTClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return &RESTClient{client: c}
}

// NewAuthenticatedClient builds an *http.Client that sends token as a bearer
// credential and logs each round trip. An empty token yields an anonymous
// client.
func NewAuthenticatedClient(ctx context.Context, token string, timeout time.Duration, log *slog.Logger) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Client{Transport: NewLoggingTransport(nil, log)}
	if token == "" {
		base.Timeout = timeout
		return base
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
	tc.Timeout = timeout
	return tc
}

func (c *RESTClient) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

// Post sends body as JSON. A nil body sends an empty request.
func (c *RESTClient) Post(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	return c.do(ctx, http.MethodPost, url, r, headers)
}

func (c *RESTClient) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// Decode unmarshals a provider response into v, tagging failures with
// ErrInvalidPayload.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
