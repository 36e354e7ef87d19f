package qgm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to a QueryGrid Manager over its REST API. Only the small
// surface the launcher needs is implemented: reachability and version for
// the health endpoint.
type Client struct {
	baseURL string
	config  Config
	client  *http.Client
	logger  *slog.Logger
}

// Config holds QueryGrid Manager connection settings.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	VerifySSL bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Configured reports whether enough settings are present to attempt a
// connection. Without credentials the health surface reports the manager
// as not configured rather than probing it.
func (c Config) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// APIInfo is the subset of the manager's version document the launcher
// consumes.
type APIInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
}

// New creates a QueryGrid Manager client. VerifySSL false skips
// certificate verification, matching managers running on self-signed
// certificates.
func New(config Config) *Client {
	if config.Port == 0 {
		config.Port = 9443
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if !config.VerifySSL {
		// #nosec G402
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: fmt.Sprintf("https://%s:%d/api/v2", config.Host, config.Port),
		config:  config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		logger: config.Logger,
	}
}

// BaseURL returns the manager API root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// APIInfo fetches the manager's version document. It is the cheapest
// authenticated round trip the API offers, so it doubles as the
// reachability probe.
func (c *Client) APIInfo(ctx context.Context) (APIInfo, error) {
	var info APIInfo
	if err := c.getJSON(ctx, "/config/about", &info); err != nil {
		return APIInfo{}, err
	}
	return info, nil
}

// IsReachable reports whether the manager answers an authenticated request.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.APIInfo(ctx)
	if err != nil {
		c.logger.Debug("querygrid manager unreachable", "error", err)
	}
	return err == nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("querygrid manager: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
