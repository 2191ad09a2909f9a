package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/logger"

	"github.com/go-resty/resty/v2"
)

// Fetcher returns the UTF-8 HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// HTTPFetcher fetches pages with plain GET requests and browser-like headers
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	return helpers.FetchWithRandomHeaders(ctx, f.Client, url)
}

// ChromeFetcher renders pages through a browserless-compatible /content
// endpoint so that script-built listings are present in the HTML. When
// rendering fails it falls back to Fallback, if set.
type ChromeFetcher struct {
	client   *resty.Client
	timeout  time.Duration
	Fallback Fetcher
	log      *logger.Logger
}

type contentRequest struct {
	URL         string      `json:"url"`
	GotoOptions gotoOptions `json:"gotoOptions"`
}

type gotoOptions struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

// NewChromeFetcher creates a fetcher for the rendering service at addr
func NewChromeFetcher(addr string, timeout time.Duration, fallback Fetcher) *ChromeFetcher {
	client := resty.New().
		SetBaseURL(strings.TrimRight(addr, "/")).
		SetTimeout(timeout+5*time.Second).
		SetHeader("Content-Type", "application/json")

	return &ChromeFetcher{
		client:   client,
		timeout:  timeout,
		Fallback: fallback,
		log:      logger.ForBrowser("chromedb"),
	}
}

// Fetch implements Fetcher
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	body, err := f.render(ctx, url)
	if err == nil {
		return body, nil
	}
	if f.Fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	f.log.Warn().Err(err).Str("url", url).Msg("Rendering failed, falling back to direct fetch")
	return f.Fallback.Fetch(ctx, url)
}

func (f *ChromeFetcher) render(ctx context.Context, url string) (io.Reader, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(contentRequest{
			URL: url,
			GotoOptions: gotoOptions{
				WaitUntil: "networkidle2",
				Timeout:   f.timeout.Milliseconds(),
			},
		}).
		Post("/content")
	if err != nil {
		return nil, fmt.Errorf("chromedb content request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &helpers.StatusError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			RetryAfter: resp.Header().Get("Retry-After"),
		}
	}

	body := resp.Body()
	if !bytes.Contains(body, []byte("<html")) && !bytes.Contains(body, []byte("<body")) {
		return nil, fmt.Errorf("chromedb returned %d bytes without an HTML document", len(body))
	}
	return helpers.ToUTF8(body, resp.Header().Get("Content-Type"))
}
