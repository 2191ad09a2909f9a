package browser

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"sjsage522/menuscout/internal/browser/browsertest"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
	"sjsage522/menuscout/services/cache"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "http://shop.test"

func newStatic(t *testing.T, f Fetcher, guard *Guard) *StaticBrowser {
	t.Helper()
	b, err := NewStatic(StaticOptions{Fetcher: f, Guard: guard, Logger: logger.Nop()})
	require.NoError(t, err)
	return b
}

func TestStaticLocateAndVisibility(t *testing.T) {
	site := browsertest.NewSite().Page(testBase+"/", `<html><body>
		<div class="card" hidden><span class="name">Hidden Pizza</span></div>
		<div class="card" style="display: none"><span class="name">Styled Away</span></div>
		<div class="card" aria-hidden="true"><span class="name">Aria Hidden</span></div>
		<div class="card"><span class="name">Visible Pizza</span><button>Sepete Ekle</button></div>
		<input type="hidden" name="csrf" value="x">
	</body></html>`)
	b := newStatic(t, site, nil)
	ctx := context.Background()

	require.NoError(t, b.Navigate(ctx, testBase+"/", WaitLoad, time.Second))

	cards := b.LocateAll(ctx, nil, Query{CSS: ".card"})
	require.Len(t, cards, 4)
	assert.False(t, b.IsVisible(ctx, cards[0], 0))
	assert.False(t, b.IsVisible(ctx, cards[1], 0))
	assert.False(t, b.IsVisible(ctx, cards[2], 0))
	assert.True(t, b.IsVisible(ctx, cards[3], 0))

	name, ok := b.Locate(ctx, cards[3], Query{CSS: ".name"})
	require.True(t, ok)
	text, err := b.TextContent(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "Visible Pizza", text)

	_, ok = b.Locate(ctx, nil, Query{CSS: "button", HasText: "sepete ekle"})
	assert.True(t, ok)
	_, ok = b.Locate(ctx, nil, Query{CSS: "button", HasText: "Ödeme"})
	assert.False(t, ok)

	csrf, ok := b.Locate(ctx, nil, Query{CSS: `input[name="csrf"]`})
	require.True(t, ok)
	assert.False(t, b.IsVisible(ctx, csrf, 0))

	_, ok = b.Locate(ctx, nil, Query{CSS: "[[invalid"})
	assert.False(t, ok)
}

func TestStaticClickNavigatesAndGoBack(t *testing.T) {
	site := browsertest.NewSite()
	vendorURLs := site.Storefront(testBase, testBase+"/arama?q=pizza", []browsertest.Vendor{
		{Name: "Napoli", Slug: "napoli", Items: []browsertest.Item{{Name: "Margherita Pizza", Price: "45 TL"}}},
		{Name: "Roma", Slug: "roma", NoLink: true},
	})
	b := newStatic(t, site, nil)
	ctx := context.Background()

	require.NoError(t, b.Navigate(ctx, testBase+"/arama?q=pizza", WaitLoad, time.Second))
	cards := b.LocateAll(ctx, nil, Query{CSS: `[data-testid="restaurant-card"]`})
	require.Len(t, cards, 2)
	gen := b.Generation()

	// The card itself has no href; its descendant link is followed.
	require.NoError(t, b.Click(ctx, cards[0]))
	assert.Equal(t, vendorURLs[0], b.CurrentURL())
	assert.Equal(t, gen+1, b.Generation())

	// Handles from the listing are stale now.
	_, err := b.TextContent(ctx, cards[1])
	assert.True(t, errors.IsType(err, errors.TypeStaleReference))
	assert.True(t, IsStale(b, cards[1]))
	assert.ErrorIs(t, b.Click(ctx, cards[1]), errors.ErrStaleReference)

	require.NoError(t, b.GoBack(ctx))
	assert.Equal(t, testBase+"/arama?q=pizza", b.CurrentURL())
	assert.Equal(t, 1, site.Count(testBase+"/arama?q=pizza"), "going back is served from the page cache")

	// data-href cards navigate as well.
	cards = b.LocateAll(ctx, nil, Query{CSS: `[data-testid="restaurant-card"]`})
	require.NoError(t, b.Click(ctx, cards[1]))
	assert.Equal(t, vendorURLs[1], b.CurrentURL())

	require.NoError(t, b.GoBack(ctx))
	assert.Error(t, b.GoBack(ctx), "no history left")
}

func TestStaticClickRecordsAndRejectsDisabled(t *testing.T) {
	site := browsertest.NewSite().Page(testBase+"/v", browsertest.VendorPage(browsertest.Vendor{
		Name: "Napoli",
		Items: []browsertest.Item{
			{Name: "Margherita", Price: "45 TL"},
			{Name: "Sold Out", Price: "50 TL", Disabled: true},
		},
	}))
	b := newStatic(t, site, nil)
	ctx := context.Background()
	require.NoError(t, b.Navigate(ctx, testBase+"/v", WaitLoad, 0))

	buttons := b.LocateAll(ctx, nil, Query{CSS: `[data-testid="add-to-cart"]`})
	require.Len(t, buttons, 2)

	require.NoError(t, b.Click(ctx, buttons[0]))
	actions := b.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "click", actions[0].Kind)
	assert.Equal(t, "Sepete Ekle", actions[0].Text)
	assert.Equal(t, testBase+"/v", actions[0].URL)

	err := b.Click(ctx, buttons[1])
	assert.True(t, stderrors.Is(err, ErrNotClickable))
}

func TestStaticFormSubmit(t *testing.T) {
	site := browsertest.NewSite().
		Page(testBase+"/", `<form action="/arama" method="get"><input data-testid="search-input" name="q"></form>`).
		Page(testBase+"/arama?q=margarita+pizza", `<html><body>results</body></html>`)
	b := newStatic(t, site, nil)
	ctx := context.Background()
	require.NoError(t, b.Navigate(ctx, testBase+"/", WaitLoad, 0))

	input, ok := b.Locate(ctx, nil, Query{CSS: `[data-testid="search-input"]`})
	require.True(t, ok)
	require.NoError(t, b.Fill(ctx, input, "margarita pizza"))
	require.NoError(t, b.Press(ctx, input, "Enter"))
	assert.Equal(t, testBase+"/arama?q=margarita+pizza", b.CurrentURL())
}

func TestStaticNavigationFailures(t *testing.T) {
	site := browsertest.NewSite().
		Page(testBase+"/ok", `<html></html>`).
		Fail(testBase+"/ok", 1)
	b := newStatic(t, site, nil)
	ctx := context.Background()

	err := b.Navigate(ctx, testBase+"/ok", WaitLoad, 0)
	assert.True(t, errors.IsType(err, errors.TypeNavigation))
	assert.Equal(t, "", b.CurrentURL())
	assert.Equal(t, uint64(0), b.Generation())

	require.NoError(t, b.Navigate(ctx, testBase+"/ok", WaitLoad, 0))
	assert.Error(t, b.Navigate(ctx, testBase+"/missing", WaitLoad, 0))

	assert.Error(t, newStatic(t, site, nil).Navigate(ctx, "/relative", WaitLoad, 0))
}

func TestGuardBlocksAfterRateLimit(t *testing.T) {
	site := browsertest.NewSite().
		RateLimit(testBase+"/busy").
		Page(testBase+"/ok", `<html></html>`)
	store := cache.NewMemoryCache()
	guard := NewGuard(store, "storefront_cooldown", time.Minute, 1000, 10)
	b := newStatic(t, site, guard)
	ctx := context.Background()

	err := b.Navigate(ctx, testBase+"/busy", WaitLoad, 0)
	require.Error(t, err)
	_, cacheErr := store.Get("storefront_cooldown")
	assert.NoError(t, cacheErr, "cooldown key is set")

	err = b.Navigate(ctx, testBase+"/ok", WaitLoad, 0)
	assert.True(t, errors.IsType(err, errors.TypeNavigation))
	assert.ErrorIs(t, err, errors.ErrRateLimit)
	assert.Equal(t, 0, site.Count(testBase+"/ok"), "blocked navigations never reach the storefront")
}

func TestHTTPFetcherWithMockTransport(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, testBase+"/arama",
		httpmock.NewStringResponder(http.StatusOK, `<html><body><div data-testid="restaurant-card">Napoli</div></body></html>`))

	fetcher := &HTTPFetcher{Client: &http.Client{Transport: mock}}
	b := newStatic(t, fetcher, nil)
	ctx := context.Background()

	require.NoError(t, b.Navigate(ctx, testBase+"/arama", WaitLoad, time.Second))
	card, ok := b.Locate(ctx, nil, Query{CSS: `[data-testid="restaurant-card"]`})
	require.True(t, ok)
	text, _ := b.TextContent(ctx, card)
	assert.Equal(t, "Napoli", text)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestChromeFetcherFallsBack(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, "http://chrome.test/content",
		httpmock.NewStringResponder(http.StatusOK, `<html><body><p id="rendered">rendered</p></body></html>`))

	chrome := NewChromeFetcher("http://chrome.test/", time.Second, nil)
	chrome.log = logger.Nop()
	chrome.client.SetTransport(mock)

	b := newStatic(t, chrome, nil)
	require.NoError(t, b.Navigate(context.Background(), testBase+"/arama", WaitLoad, time.Second))
	_, ok := b.Locate(context.Background(), nil, Query{CSS: "#rendered"})
	assert.True(t, ok)

	broken := httpmock.NewMockTransport()
	broken.RegisterResponder(http.MethodPost, "http://chrome.test/content",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))
	site := browsertest.NewSite().Page(testBase+"/arama", `<html><body><p id="direct">direct</p></body></html>`)

	chrome = NewChromeFetcher("http://chrome.test", time.Second, site)
	chrome.log = logger.Nop()
	chrome.client.SetTransport(broken)

	b = newStatic(t, chrome, nil)
	require.NoError(t, b.Navigate(context.Background(), testBase+"/arama", WaitLoad, time.Second))
	_, ok = b.Locate(context.Background(), nil, Query{CSS: "#direct"})
	assert.True(t, ok)
}

func TestWaitPolicyString(t *testing.T) {
	assert.Equal(t, "networkidle", WaitNetworkIdle.String())
	assert.Equal(t, "commit", WaitCommit.String())
	assert.Equal(t, `button:has-text("Ekle")`, Query{CSS: "button", HasText: "Ekle"}.String())
}
