package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/retry"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	appliancesPath = "/api/1.0/appliances"

	operationList      = "list_appliances"
	operationDrain     = "drain_appliance"
	operationRemediate = "remediate_appliance"

	maxErrorBody = 4096
)

// ErrNotFound is returned when the appliance no longer exists
var ErrNotFound = errors.New("appliance not found")

// StatusError is returned for non-2xx responses other than 404 on drain and remediate
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config holds appliance API client settings
type Config struct {
	BaseURL    string
	AuthHeader string
	ActorEmail string

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests; zero disables limiting
	RequestsPerSecond float64
	Burst             int

	ListMaxAttempts      int
	OperationMaxAttempts int
	InitialDelay         time.Duration
	Multiplier           float64

	// HTTPClient overrides the default transport, mainly for tests
	HTTPClient *http.Client
}

// DefaultConfig returns client settings matching the inventory API's retry guidance
func DefaultConfig() Config {
	return Config{
		Timeout:              5 * time.Second,
		Burst:                1,
		ListMaxAttempts:      5,
		OperationMaxAttempts: 3,
		InitialDelay:         500 * time.Millisecond,
		Multiplier:           1.5,
	}
}

// Client talks to the appliance inventory API over HTTP
type Client struct {
	baseURL    *url.URL
	authHeader string
	actorEmail string
	timeout    time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	listPolicy retry.Policy
	opPolicy   retry.Policy
	logger     zerolog.Logger
}

// NewClient creates a new appliance API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if strings.TrimSpace(cfg.ActorEmail) == "" {
		return nil, fmt.Errorf("actor email is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL:    base,
		authHeader: cfg.AuthHeader,
		actorEmail: cfg.ActorEmail,
		timeout:    cfg.Timeout,
		http:       httpClient,
		logger:     log.WithComponent("client"),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c.listPolicy = retry.Policy{
		MaxAttempts:  cfg.ListMaxAttempts,
		InitialDelay: cfg.InitialDelay,
		Multiplier:   cfg.Multiplier,
		OnRetry:      c.logRetry(operationList),
	}
	c.opPolicy = retry.Policy{
		MaxAttempts:  cfg.OperationMaxAttempts,
		InitialDelay: cfg.InitialDelay,
		Multiplier:   cfg.Multiplier,
		NoRetry:      func(err error) bool { return errors.Is(err, ErrNotFound) },
		OnRetry:      c.logRetry("appliance_operation"),
	}

	c.logger.Info().Str("base_url", base.String()).Msg("Initialized appliance API client")
	return c, nil
}

// ListAppliances fetches one page of the inventory. An empty cursor requests the first page.
func (c *Client) ListAppliances(ctx context.Context, cursor string, pageSize int) (*types.AppliancePage, error) {
	query := url.Values{}
	query.Set("first", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("after", cursor)
	}

	var page types.AppliancePage
	err := retry.Do(ctx, c.listPolicy, func(ctx context.Context) error {
		page = types.AppliancePage{}
		return c.do(ctx, operationList, http.MethodGet, appliancesPath, query, nil, &page)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list appliances (after=%q): %w", cursor, err)
	}

	c.logger.Debug().Int("count", len(page.Data)).Str("after", cursor).Msg("Fetched appliance page")
	return &page, nil
}

// Drain asks the appliance to stop accepting new work
func (c *Client) Drain(ctx context.Context, applianceID string) (*types.DrainResult, error) {
	body := types.ActionRequest{
		Reason: fmt.Sprintf("Appliance %s detected as stale - automated drain", applianceID),
		Actor:  c.actorEmail,
	}

	var result types.DrainResult
	err := retry.Do(ctx, c.opPolicy, func(ctx context.Context) error {
		result = types.DrainResult{}
		return c.do(ctx, operationDrain, http.MethodPost, appliancePath(applianceID, "drain"), nil, body, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain appliance %s: %w", applianceID, err)
	}

	c.logger.Info().Str("appliance_id", applianceID).Str("drain_id", result.DrainID.String()).Msg("Drained appliance")
	return &result, nil
}

// Remediate performs corrective action on a drained appliance
func (c *Client) Remediate(ctx context.Context, applianceID string) (*types.RemediateResult, error) {
	body := types.ActionRequest{
		Reason: fmt.Sprintf("Appliance %s remediation after drain", applianceID),
		Actor:  c.actorEmail,
	}

	var result types.RemediateResult
	err := retry.Do(ctx, c.opPolicy, func(ctx context.Context) error {
		result = types.RemediateResult{}
		return c.do(ctx, operationRemediate, http.MethodPost, appliancePath(applianceID, "remediate"), nil, body, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remediate appliance %s: %w", applianceID, err)
	}

	c.logger.Info().
		Str("appliance_id", applianceID).
		Str("remediation_id", result.RemediationID.String()).
		Str("result", result.RemediationResult).
		Msg("Remediated appliance")
	return &result, nil
}

func appliancePath(applianceID, action string) string {
	return fmt.Sprintf("%s/%s/%s", appliancesPath, url.PathEscape(applianceID), action)
}

// do performs a single HTTP attempt bounded by the per-call timeout
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	timer.ObserveDurationVec(metrics.ApplianceAPIRequestDuration, operation)
	if err != nil {
		metrics.ApplianceAPIRequestsTotal.WithLabelValues(operation, "failure").Inc()
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && operation != operationList {
		metrics.ApplianceAPIRequestsTotal.WithLabelValues(operation, "not_found").Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w", method, u.Path, ErrNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ApplianceAPIRequestsTotal.WithLabelValues(operation, "failure").Inc()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("response", string(data)).
			Msg("Appliance API request failed")
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		metrics.ApplianceAPIRequestsTotal.WithLabelValues(operation, "failure").Inc()
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	metrics.ApplianceAPIRequestsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}

func (c *Client) logRetry(operation string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("operation", operation).Dur("backoff", wait).Msg("Appliance API call failed, retrying")
	}
}
