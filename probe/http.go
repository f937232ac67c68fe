package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const maxResponseBytes = 1 << 20

var _ Probe = (*HTTPProbe)(nil)

// HTTPProbe posts JSON payloads to the endpoints listed in its Config
type HTTPProbe struct {
	cfg    *Config
	client *http.Client
	log    log.Logger
}

// NewHTTPProbe creates an HTTPProbe. A nil client gets one with the configured timeout.
func NewHTTPProbe(cfg *Config, client *http.Client, logger log.Logger) (*HTTPProbe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("probe config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &HTTPProbe{cfg: cfg, client: client, log: logger}, nil
}

// Invoke implements Probe
func (p *HTTPProbe) Invoke(ctx context.Context, endpoint string, payload map[string]any) (Response, error) {
	path, ok := p.cfg.Endpoints[endpoint]
	if !ok {
		return Response{}, fmt.Errorf("unknown endpoint %q", endpoint)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	target := strings.TrimRight(p.cfg.Probe.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.cfg.Probe.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpRes, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer httpRes.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	p.log.Debug("probe call", "endpoint", endpoint, "status", httpRes.StatusCode, "duration", time.Since(start))

	if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
		return Response{}, fmt.Errorf("endpoint %s returned HTTP %d: %s", endpoint, httpRes.StatusCode, truncate(string(raw), 200))
	}

	var res Response
	if err := json.Unmarshal(raw, &res); err != nil {
		return Response{}, fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
