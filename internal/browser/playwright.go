package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightOptions configures the Chromium instance
type PlaywrightOptions struct {
	Headless  bool
	SlowMo    time.Duration
	UserAgent string
	Locale    string
	// ActionTimeout bounds clicks, fills and text reads.
	ActionTimeout time.Duration
	Guard         *Guard
	Logger        *logger.Logger
}

// PlaywrightBrowser implements Browser on a single Chromium page
type PlaywrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	guard   *Guard
	timeout float64
	gen     uint64
	log     *logger.Logger
}

type playwrightHandle struct {
	loc playwright.Locator
	gen uint64
}

func (h *playwrightHandle) Generation() uint64 { return h.gen }

// NewPlaywright starts the Playwright driver and opens one page
func NewPlaywright(opts PlaywrightOptions) (*PlaywrightBrowser, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = helpers.RandomUserAgent()
	}
	if opts.Locale == "" {
		opts.Locale = "tr-TR"
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.ForBrowser("playwright")
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errors.NewConfiguration("could not start playwright", err)
	}

	chromium, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		pw.Stop()
		return nil, errors.NewConfiguration("could not launch chromium", err)
	}

	page, err := chromium.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Locale:    playwright.String(opts.Locale),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		chromium.Close()
		pw.Stop()
		return nil, errors.NewConfiguration("could not open page", err)
	}
	page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))

	log.Info().
		Bool("headless", opts.Headless).
		Dur("slow_mo", opts.SlowMo).
		Msg("Chromium started")

	return &PlaywrightBrowser{
		pw:      pw,
		browser: chromium,
		page:    page,
		guard:   opts.Guard,
		timeout: float64(opts.ActionTimeout.Milliseconds()),
		log:     log,
	}, nil
}

func waitUntil(policy WaitPolicy) *playwright.WaitUntilState {
	switch policy {
	case WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case WaitCommit:
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

// Navigate implements Browser
func (b *PlaywrightBrowser) Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.guard.Before(ctx, url); err != nil {
		return errors.NewNavigation(url, "navigation not allowed", err)
	}

	opts := playwright.PageGotoOptions{WaitUntil: waitUntil(policy)}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}

	resp, err := b.page.Goto(url, opts)
	b.gen++
	if err != nil {
		return errors.NewNavigation(url, fmt.Sprintf("goto (%s)", policy), err)
	}
	if resp != nil {
		if status := resp.Status(); status == http.StatusTooManyRequests || status == 430 {
			b.guard.Block(url)
			return errors.NewNavigation(url, "storefront rate limit", &helpers.StatusError{URL: url, StatusCode: status})
		}
	}

	b.log.Debug().Str("url", url).Str("wait", policy.String()).Msg("Navigated")
	return nil
}

func (b *PlaywrightBrowser) locator(scope Handle, q Query) (playwright.Locator, bool) {
	var loc playwright.Locator
	if scope == nil {
		loc = b.page.Locator(q.CSS)
	} else {
		h, err := b.handle(scope)
		if err != nil {
			return nil, false
		}
		loc = h.loc.Locator(q.CSS)
	}
	if q.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: q.HasText})
	}
	return loc, true
}

func (b *PlaywrightBrowser) handle(h Handle) (*playwrightHandle, error) {
	ph, ok := h.(*playwrightHandle)
	if !ok || ph == nil {
		return nil, fmt.Errorf("handle %T does not belong to the playwright driver", h)
	}
	if ph.gen != b.gen {
		return nil, errors.NewStaleReference("element belongs to a previous document")
	}
	return ph, nil
}

// Locate returns a handle on the first match. Playwright locators resolve
// lazily, so presence is only known once IsVisible is asked.
func (b *PlaywrightBrowser) Locate(ctx context.Context, scope Handle, q Query) (Handle, bool) {
	loc, ok := b.locator(scope, q)
	if !ok {
		return nil, false
	}
	return &playwrightHandle{loc: loc.First(), gen: b.gen}, true
}

// LocateAll returns one handle per current match
func (b *PlaywrightBrowser) LocateAll(ctx context.Context, scope Handle, q Query) []Handle {
	loc, ok := b.locator(scope, q)
	if !ok {
		return nil
	}
	all, err := loc.All()
	if err != nil {
		b.log.Debug().Err(err).Str("query", q.String()).Msg("LocateAll failed")
		return nil
	}
	handles := make([]Handle, 0, len(all))
	for _, l := range all {
		handles = append(handles, &playwrightHandle{loc: l, gen: b.gen})
	}
	return handles
}

// IsVisible waits up to timeout for the element to become visible. A
// non-positive timeout checks once.
func (b *PlaywrightBrowser) IsVisible(ctx context.Context, h Handle, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	ph, err := b.handle(h)
	if err != nil {
		return false
	}
	if timeout <= 0 {
		visible, err := ph.loc.IsVisible()
		return err == nil && visible
	}
	err = ph.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil
}

// TextContent implements Browser
func (b *PlaywrightBrowser) TextContent(ctx context.Context, h Handle) (string, error) {
	ph, err := b.handle(h)
	if err != nil {
		return "", err
	}
	return ph.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(b.timeout)})
}

// Attribute implements Browser
func (b *PlaywrightBrowser) Attribute(ctx context.Context, h Handle, name string) (string, error) {
	ph, err := b.handle(h)
	if err != nil {
		return "", err
	}
	return ph.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(b.timeout)})
}

// Click clicks the element. When the click changes the page URL the
// document generation moves on.
func (b *PlaywrightBrowser) Click(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ph, err := b.handle(h)
	if err != nil {
		return err
	}

	before := b.page.URL()
	if err := ph.loc.Click(); err != nil {
		return fmt.Errorf("click: %w: %v", ErrNotClickable, err)
	}
	b.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(b.timeout),
	})
	if b.page.URL() != before {
		b.gen++
	}
	return nil
}

// Fill implements Browser
func (b *PlaywrightBrowser) Fill(ctx context.Context, h Handle, value string) error {
	ph, err := b.handle(h)
	if err != nil {
		return err
	}
	return ph.loc.Fill(value)
}

// Press implements Browser
func (b *PlaywrightBrowser) Press(ctx context.Context, h Handle, key string) error {
	ph, err := b.handle(h)
	if err != nil {
		return err
	}
	before := b.page.URL()
	if err := ph.loc.Press(key); err != nil {
		return err
	}
	if key == "Enter" {
		b.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(b.timeout),
		})
		if b.page.URL() != before {
			b.gen++
		}
	}
	return nil
}

// CurrentURL implements Browser
func (b *PlaywrightBrowser) CurrentURL() string {
	return b.page.URL()
}

// GoBack implements Browser
func (b *PlaywrightBrowser) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// History API moves within one document resolve without a response;
	// the caller's listing wait decides whether the page is usable.
	if _, err := b.page.GoBack(playwright.PageGoBackOptions{
		Timeout:   playwright.Float(b.timeout),
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		b.gen++
		return errors.NewNavigation(b.page.URL(), "go back", err)
	}
	b.gen++
	return nil
}

// Generation implements Browser
func (b *PlaywrightBrowser) Generation() uint64 {
	return b.gen
}

// Close shuts Chromium and the driver down
func (b *PlaywrightBrowser) Close() error {
	var firstErr error
	if err := b.browser.Close(); err != nil {
		firstErr = err
	}
	if err := b.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	b.log.Info().Msg("Chromium closed")
	return firstErr
}
