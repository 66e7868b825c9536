// Package client talks to a registry over its JSON API.
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
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/cerbtk/registry/ledger"
	"github.com/cerbtk/registry/nonce"
	"github.com/cerbtk/registry/types"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("unavailable")
	ErrInvalidRequest = errors.New("invalid request")
)

// APIError is the error body returned by the registry.
type APIError struct {
	Status int      `json:"-"`
	Code   string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s (status %d, fields %v)", e.Code, e.Status, e.Fields)
	}
	return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
}

type Client struct {
	baseURL *url.URL
	client  *retryablehttp.Client
}

type config struct {
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	logger       *zap.Logger
}

type OptionFunc func(*config)

func WithRetries(retryMax int, waitMin, waitMax time.Duration) OptionFunc {
	return func(c *config) {
		c.retryMax = retryMax
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(c *config) {
		c.logger = logger
	}
}

// New returns a client for the registry listening at baseURL.
func New(baseURL string, opts ...OptionFunc) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}

	cfg := config{
		retryMax:     4,
		retryWaitMin: 100 * time.Millisecond,
		retryWaitMax: 2 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.retryMax
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.Logger = leveledLogger{cfg.logger.Sugar()}
	client.CheckRetry = checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{baseURL: u, client: client}, nil
}

// checkRetry retries transport failures and gateway errors only.
// A 500 from the registry means the ledger refused the block and repeating the request will not help.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *Client) Nonce(ctx context.Context, deviceID string) (nonce.Entry, error) {
	var entry nonce.Entry
	if err := c.req(ctx, http.MethodPost, "/device/nonce/"+url.PathEscape(deviceID), nil, &entry); err != nil {
		return nonce.Entry{}, fmt.Errorf("requesting nonce: %w", err)
	}
	return entry, nil
}

// Register submits a raw registration body.
func (c *Client) Register(ctx context.Context, body []byte) (ledger.Block, error) {
	var block ledger.Block
	if err := c.req(ctx, http.MethodPost, "/device/write", body, &block); err != nil {
		return ledger.Block{}, fmt.Errorf("registering: %w", err)
	}
	return block, nil
}

func (c *Client) RegisterPayload(ctx context.Context, p *types.RegistrationPayload) (ledger.Block, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("encoding payload: %w", err)
	}
	return c.Register(ctx, body)
}

func (c *Client) Blocks(ctx context.Context) ([]ledger.Block, error) {
	var blocks []ledger.Block
	if err := c.req(ctx, http.MethodGet, "/device/all", nil, &blocks); err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	return blocks, nil
}

func (c *Client) Block(ctx context.Context, hash string) (ledger.Block, error) {
	var block ledger.Block
	if err := c.req(ctx, http.MethodGet, "/device/"+url.PathEscape(hash), nil, &block); err != nil {
		return ledger.Block{}, fmt.Errorf("getting block %s: %w", hash, err)
	}
	return block, nil
}

func (c *Client) BlockByDeviceID(ctx context.Context, deviceID string) (ledger.Block, error) {
	var block ledger.Block
	if err := c.req(ctx, http.MethodGet, "/device/id/"+url.PathEscape(deviceID), nil, &block); err != nil {
		return ledger.Block{}, fmt.Errorf("getting block of device %s: %w", deviceID, err)
	}
	return block, nil
}

func (c *Client) Validate(ctx context.Context) (bool, error) {
	var res struct {
		Valid bool `json:"valid"`
	}
	if err := c.req(ctx, http.MethodGet, "/chain/validate", nil, &res); err != nil {
		return false, fmt.Errorf("validating chain: %w", err)
	}
	return res.Valid, nil
}

func (c *Client) Head(ctx context.Context) (ledger.Head, error) {
	var head ledger.Head
	if err := c.req(ctx, http.MethodGet, "/chain/head", nil, &head); err != nil {
		return ledger.Head{}, fmt.Errorf("getting head: %w", err)
	}
	return head, nil
}

func (c *Client) Anchor(ctx context.Context) (ledger.Anchor, error) {
	var anchor ledger.Anchor
	if err := c.req(ctx, http.MethodGet, "/chain/anchor", nil, &anchor); err != nil {
		return ledger.Anchor{}, fmt.Errorf("getting anchor: %w", err)
	}
	return anchor, nil
}

func (c *Client) req(ctx context.Context, method, path string, reqBody []byte, resBody any) error {
	var body io.Reader
	if reqBody != nil {
		body = bytes.NewReader(reqBody)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body (%w)", err)
	}

	if res.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: res.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = string(data)
		}
		switch res.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %w", ErrInvalidRequest, apiErr)
		default:
			return fmt.Errorf("unrecognized error: %w", apiErr)
		}
	}

	if resBody != nil {
		if err := json.Unmarshal(data, resBody); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}

// leveledLogger lets retryablehttp log through zap.
type leveledLogger struct {
	*zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	l.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	l.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.Warnw(msg, keysAndValues...)
}
