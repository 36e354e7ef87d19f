package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTP probes the managed server's health endpoint. It implements the
// lifecycle prober contract: the returned map is relayed verbatim into
// status output.
type HTTP struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// Check fetches the health document. The request is bounded by Timeout so
// a wedged server cannot hang status.
func (p HTTP) Check(ctx context.Context) (map[string]any, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health probe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("health probe: HTTP %d", resp.StatusCode)
	}
	return health, nil
}
