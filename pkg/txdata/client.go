package txdata

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/blockworld/pkg/buildinfo"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/httputil"
	"github.com/matzehuels/blockworld/pkg/observability"
)

// Client fetches transaction sizes from the upstream service.
type Client struct {
	URL    string
	APIKey string

	// Retry governs transient failures: network errors, 5xx and 429.
	Retry httputil.Policy

	http *http.Client
}

// NewClient creates a client for the service at url.
func NewClient(url, apiKey string) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		Retry:  httputil.DefaultPolicy,
		http:   httputil.NewClient(httputil.DefaultTimeout),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Values implements [Source]. Server errors and network failures are
// retried; a 404 yields an error matching [ErrNotFound].
func (c *Client) Values(ctx context.Context, height int64) ([]int64, error) {
	if err := bwerrors.ValidateBlockHeight(height); err != nil {
		return nil, err
	}
	var values []int64
	err := httputil.Retry(ctx, c.Retry, func() error {
		var err error
		values, err = c.fetch(ctx, height)
		return err
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Client) fetch(ctx context.Context, height int64) ([]int64, error) {
	form := url.Values{
		"apikey":      {c.APIKey},
		"blockHeight": {strconv.FormatInt(height, 10)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeInvalidConfig, err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	hc := c.http
	if hc == nil {
		hc = httputil.NewClient(0)
	}
	resp, err := hc.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, httputil.TransportError(ctx, err, "fetch block %d", height)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeNotFound, ErrNotFound, "block %d", height)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		return nil, err
	}
	return Parse(resp.Body)
}
