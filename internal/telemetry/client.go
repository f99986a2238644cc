package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/netscan"
)

const summaryEndpoint = "/2/summary"

// maxBody caps the summary size, a real one is a few kB.
const maxBody = 1 << 20

// HTTPSource reads statistics from the XMRig HTTP API of the session.
type HTTPSource struct {
	httpClient *http.Client
}

// ClientOption configures an HTTPSource.
type ClientOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPSource) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPSource) {
		c.httpClient.Timeout = timeout
	}
}

func NewHTTPSource(opts ...ClientOption) *HTTPSource {
	c := &HTTPSource{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			// one request every few seconds to a process that may go away
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPSource) Fetch(ctx context.Context, s Session) (model.MiningStats, error) {
	var summary Summary
	if err := c.request(ctx, s, summaryEndpoint, &summary); err != nil {
		return model.MiningStats{}, err
	}
	return summary.Stats(), nil
}

func (c *HTTPSource) request(ctx context.Context, s Session, endpoint string, result any) error {
	url := "http://" + netscan.Loopback(s.Port).String() + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}
