package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iml1s/xmrigminer/internal/model"
)

// Client talks to the control API of a running service.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

func NewClient(serverURL string) (*Client, error) {
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Path != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://127.0.0.1:37421`")
	}

	return &Client{
		baseURL: parsedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Start starts mining, with the service's configured defaults when cfg is nil.
func (c *Client) Start(ctx context.Context, cfg *model.MiningConfig) (string, error) {
	var body any
	if cfg != nil {
		body = cfg
	}
	var ack Ack
	err := c.do(ctx, http.MethodPost, PathStart, body, &ack)
	return ack.Message, err
}

func (c *Client) Stop(ctx context.Context) (string, error) {
	var ack Ack
	err := c.do(ctx, http.MethodPost, PathStop, nil, &ack)
	return ack.Message, err
}

func (c *Client) Stats(ctx context.Context) (model.MiningStats, error) {
	var stats model.MiningStats
	err := c.do(ctx, http.MethodGet, PathStats, nil, &stats)
	return stats, err
}

func (c *Client) Running(ctx context.Context) (bool, error) {
	var resp RunningResponse
	err := c.do(ctx, http.MethodGet, PathRunning, nil, &resp)
	return resp.Running, err
}

func (c *Client) System(ctx context.Context) (model.SystemInfo, error) {
	var info model.SystemInfo
	err := c.do(ctx, http.MethodGet, PathSystem, nil, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	u := *c.baseURL
	u.Path = path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json, "+problemContentType)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return decodeResponse(resp, result)
}

func decodeResponse(resp *http.Response, result any) error {
	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("failed to parse response content type header: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if contentType != "application/json" {
			return fmt.Errorf("expected `application/json` content type, got: %s", contentType)
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		return nil
	case contentType == problemContentType:
		var p Problem
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		if p.Status == 0 {
			p.Status = resp.StatusCode
		}
		return &p
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	return fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
