// Package registry talks to the identity registry over its JSON RPC-style
// HTTP API. The Client owns transport concerns (auth, throttling, error
// taxonomy); the Gateway exposes the operations the sync engine needs.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"oidcsync/internal/config"
	"oidcsync/internal/observability"
)

// Client posts JSON-encoded calls to {base}/{serializer}/{manager}/{method}.
type Client struct {
	baseURL    string
	serializer string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        observability.Logger
}

// NewClient builds a Client from the registry configuration.
func NewClient(cfg config.Registry, log observability.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serializer: cfg.Serializer,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    limiter,
		log:        log.WithComponent("registry"),
	}
}

// post calls one manager method. A nil result with a nil error means the
// registry reported the entity does not exist, or answered with an empty
// body (which is how it signals success for write methods).
func (c *Client) post(ctx context.Context, manager, method string, params any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}

	bodyJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.serializer, manager, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	c.log.Debug("registry call", "manager", manager, "method", method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrConnection, manager, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConnection, err)
	}

	if rpcErr := decodeRPCError(respBody); rpcErr != nil {
		if isNotExists(rpcErr.Name) {
			c.log.Debug("registry reported absence", "manager", manager,
				"method", method, "exception", rpcErr.Name)
			return nil, nil
		}
		return nil, rpcErr
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s/%s: status %d: %s",
			ErrUnknown, manager, method, resp.StatusCode, string(respBody))
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	return json.RawMessage(trimmed), nil
}

// decodeRPCError recognizes the registry's error payload. The registry can
// deliver it with any HTTP status, so detection goes by shape, not status.
func decodeRPCError(body []byte) *RPCError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var rpcErr RPCError
	if err := json.Unmarshal(trimmed, &rpcErr); err != nil {
		return nil
	}
	if rpcErr.ErrorID == "" || rpcErr.Name == "" {
		return nil
	}
	return &rpcErr
}
