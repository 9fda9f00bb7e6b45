// Package oanda implements broker.Broker against the OANDA v20 REST and
// streaming APIs.
package oanda

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

	"github.com/rustyeddy/fxsignal/broker"
	"github.com/rustyeddy/fxsignal/internal/core"
	"github.com/rustyeddy/fxsignal/internal/logging"
	"go.uber.org/zap"
)

const (
	PracticeURL       = "https://api-fxpractice.oanda.com"
	LiveURL           = "https://api-fxtrade.oanda.com"
	PracticeStreamURL = "https://stream-fxpractice.oanda.com"
	LiveStreamURL     = "https://stream-fxtrade.oanda.com"

	// MaxCandles is the largest page the candles endpoint returns.
	MaxCandles = 5000
)

var _ broker.Broker = (*Client)(nil)

type Client struct {
	BaseURL   string // e.g. https://api-fxpractice.oanda.com
	StreamURL string // defaults to BaseURL
	Token     string
	AccountID string

	// HTTP serves REST calls. Streams use a copy without a timeout.
	HTTP   *http.Client
	Logger *zap.Logger

	// PageSize overrides MaxCandles for range requests.
	PageSize int
}

// BaseURL returns the REST and stream hosts for env.
func BaseURL(env string) (api, stream string, err error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo":
		return PracticeURL, PracticeStreamURL, nil
	case "live", "trade":
		return LiveURL, LiveStreamURL, nil
	default:
		return "", "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

// New builds a client for env with a 30s REST timeout.
func New(env, token, accountID string, logger *zap.Logger) (*Client, error) {
	api, stream, err := BaseURL(env)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("oanda: missing token")
	}
	if accountID == "" {
		return nil, errors.New("oanda: missing account id")
	}
	return &Client{
		BaseURL:   api,
		StreamURL: stream,
		Token:     token,
		AccountID: accountID,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Logger:    logger,
	}, nil
}

// httpError is a non-2xx response.
type httpError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("oanda %s %s http %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) log() *zap.Logger { return logging.OrNop(c.Logger) }

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) accountPath(format string, args ...any) string {
	return "/v3/accounts/" + url.PathEscape(c.AccountID) + fmt.Sprintf(format, args...)
}

func (c *Client) check() error {
	if c.Token == "" {
		return errors.New("oanda: missing token")
	}
	if c.BaseURL == "" {
		return errors.New("oanda: missing base url")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, base, method, path string, q url.Values, body any) (*http.Request, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.Path = path
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends a REST request and decodes a 2xx JSON body into out. Failures
// wrap core.ErrTransport, or core.ErrNotFound for a 404.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	if err := c.check(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, c.BaseURL, method, path, q, body)
	if err != nil {
		return err
	}

	began := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return core.WrapError(core.ErrTransport, err)
	}
	defer resp.Body.Close()

	c.log().Debug("oanda request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(began)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		herr := &httpError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if resp.StatusCode == http.StatusNotFound {
			return core.WrapError(core.ErrNotFound, herr)
		}
		return core.WrapError(core.ErrTransport, herr)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapError(core.ErrTransport, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func trimForErr(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
