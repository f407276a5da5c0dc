package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/export"
	"github.com/backendex/backendex/pkg/telemetry"
)

// Config holds the connection settings for one controller.
type Config struct {
	// BaseURL is the controller root, e.g. "https://acme.example.com:8090".
	BaseURL string

	// Account is the controller account name.
	Account string

	// Username is the API user.
	Username string

	// Password enables session-cookie authentication.
	Password string

	// Secret enables OAuth client-credentials authentication. Takes
	// precedence over Password when both are set.
	Secret string

	// ProxyURL optionally routes all requests through an HTTP proxy.
	ProxyURL string

	// Timeout bounds each HTTP call. Zero means the transport default.
	Timeout time.Duration
}

// Client issues authenticated queries against the controller's REST API and
// its hierarchical metric namespace. It implements export.Catalog.
type Client struct {
	cfg     Config
	httpc   *http.Client
	cred    Credential
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewClient builds the HTTP client, performs the authentication handshake,
// and returns a ready catalog client.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger, metrics *telemetry.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, export.NewConfigError("controller base url is required", nil)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, export.NewConfigError("invalid proxy url", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, export.NewConfigError("creating cookie jar failed", err)
	}

	httpc := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Timeout,
	}

	clientLogger := logger.With().Str("component", "controller").Logger()

	cred, err := resolveCredential(ctx, cfg, httpc, clientLogger)
	if err != nil {
		return nil, err
	}
	clientLogger.Debug().Str("base_url", cfg.BaseURL).Msg("Controller authentication succeeded")

	return &Client{
		cfg:     cfg,
		httpc:   httpc,
		cred:    cred,
		logger:  clientLogger,
		metrics: metrics,
	}, nil
}

// Applications lists all monitored applications.
func (c *Client) Applications(ctx context.Context) ([]export.Application, error) {
	var apps []export.Application
	err := c.getJSON(ctx, "applications",
		c.cfg.BaseURL+"/controller/rest/applications?output=json", &apps)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// Entities lists the children of the given metric path for one application.
// The path is pipe-delimited; spaces are percent-encoded on the wire. An
// empty result is a normal traversal outcome, not an error.
func (c *Client) Entities(ctx context.Context, appID int, path string) ([]export.MetricEntity, error) {
	endpoint := fmt.Sprintf("%s/controller/rest/applications/%d/metrics?output=json&metric-path=%s",
		c.cfg.BaseURL, appID, encodeMetricPath(path))

	var entities []export.MetricEntity
	if err := c.getJSON(ctx, "metrics", endpoint, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// getJSON performs one signed GET and decodes the JSON body. Any HTTP
// failure, non-2xx status, or undecodable body is a transport error, fatal
// for the run.
func (c *Client) getJSON(ctx context.Context, operation, endpoint string, out interface{}) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.metrics.RecordCatalogQuery(operation, "error", time.Since(start))
		return export.NewTransportError("building request failed", err).WithOperation(operation)
	}
	c.cred.sign(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.metrics.RecordCatalogQuery(operation, "error", time.Since(start))
		return export.NewTransportError("request failed", err).WithOperation(operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordCatalogQuery(operation, "error", time.Since(start))
		return export.NewTransportError(
			fmt.Sprintf("controller returned status %d", resp.StatusCode), nil).WithOperation(operation)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.RecordCatalogQuery(operation, "error", time.Since(start))
		return export.NewTransportError("decoding response failed", err).WithOperation(operation)
	}

	c.metrics.RecordCatalogQuery(operation, "success", time.Since(start))
	return nil
}

// encodeMetricPath percent-encodes a pipe-delimited metric path. The
// controller expects %20 for spaces, not the + form a query encoder emits.
func encodeMetricPath(path string) string {
	return strings.ReplaceAll(url.QueryEscape(path), "+", "%20")
}
