package bse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

// Client is the shared transport for all exchange endpoints. The
// exchange soft-blocks clients without browser-shaped headers, so every
// request carries the configured user agent and referer.
type Client struct {
	listURL     string
	xbrlURL     string
	category    string
	subcategory string
	referer     string
	userAgent   string

	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	ListURL     string
	XBRLURL     string
	Category    string
	Subcategory string
	Referer     string
	UserAgent   string
}

func New(opts Options, executor *resilience.Executor) *Client {
	return &Client{
		listURL:     strings.TrimRight(opts.ListURL, "/"),
		xbrlURL:     opts.XBRLURL,
		category:    opts.Category,
		subcategory: opts.Subcategory,
		referer:     opts.Referer,
		userAgent:   opts.UserAgent,
		httpClient:  &http.Client{},
		executor:    executor,
	}
}

func (c *Client) newRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.referer)
	req.Header.Set("Origin", strings.TrimRight(c.referer, "/"))
	return req, nil
}

// getBody performs one GET attempt and returns the raw response body.
func (c *Client) getBody(ctx context.Context, rawURL string, params url.Values, timeout time.Duration, operation string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(attemptCtx, rawURL, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError(operation, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	return body, nil
}

func decodeJSON(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}
