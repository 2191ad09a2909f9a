package session

import (
	"context"
	"testing"
	"time"

	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/browser/browsertest"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const home = "http://shop.test/"

const homePage = `<html><body>
	<div id="onetrust-banner"><button id="onetrust-accept-btn-handler">Kabul Et</button></div>
	<button data-testid="address-selector">Adres</button>
	<ul>
		<li data-testid="address-item">İş</li>
		<li data-testid="address-item">Eskişehir Ev</li>
	</ul>
	<input data-testid="search-input">
</body></html>`

func newManager(t *testing.T, site *browsertest.Site, opts Options) (*Manager, *browser.StaticBrowser) {
	t.Helper()
	b, err := browser.NewStatic(browser.StaticOptions{Fetcher: site, Logger: logger.Nop()})
	require.NoError(t, err)

	opts.StorefrontURL = home
	if opts.RetryPause == 0 {
		opts.RetryPause = time.Millisecond
	}
	r := selector.NewResolver(b, 10*time.Millisecond).WithLogger(logger.Nop())
	return NewManager(b, r, selector.DefaultCatalog(), opts).WithLogger(logger.Nop()), b
}

func TestOpenFallsThroughStrategies(t *testing.T) {
	site := browsertest.NewSite().Page(home, homePage).Fail(home, 1, 2)
	m, b := newManager(t, site, Options{})

	require.NoError(t, m.Open(context.Background()))
	assert.Equal(t, 3, site.Count(home))
	assert.Equal(t, home, b.CurrentURL())
}

func TestOpenGivesUp(t *testing.T) {
	site := browsertest.NewSite().Page(home, homePage).Fail(home, 1, 2, 3, 4)
	m, _ := newManager(t, site, Options{})

	err := m.Open(context.Background())
	assert.True(t, errors.IsType(err, errors.TypeNavigation))
	assert.Contains(t, err.Error(), "4 strategies")
	assert.Equal(t, 4, site.Count(home))
}

func TestOpenStopsOnCancel(t *testing.T) {
	site := browsertest.NewSite().Page(home, homePage).Fail(home, 1)
	m, _ := newManager(t, site, Options{RetryPause: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Open(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, site.Count(home))
}

func TestAcceptCookies(t *testing.T) {
	site := browsertest.NewSite().Page(home, homePage)
	m, b := newManager(t, site, Options{})
	require.NoError(t, m.Open(context.Background()))

	assert.True(t, m.AcceptCookies(context.Background()))
	actions := b.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "Kabul Et", actions[0].Text)

	bare := browsertest.NewSite().Page(home, `<html><body></body></html>`)
	m, _ = newManager(t, bare, Options{})
	require.NoError(t, m.Open(context.Background()))
	assert.False(t, m.AcceptCookies(context.Background()))
}

func TestSelectNamedAddress(t *testing.T) {
	site := browsertest.NewSite().Page(home, homePage)
	m, b := newManager(t, site, Options{AddressName: "eskişehir ev"})
	require.NoError(t, m.Open(context.Background()))

	require.NoError(t, m.SelectAddress(context.Background()))
	actions := b.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, "Adres", actions[0].Text)
	assert.Equal(t, "Eskişehir Ev", actions[1].Text)

	m, _ = newManager(t, site, Options{AddressName: "Ankara"})
	require.NoError(t, m.Open(context.Background()))
	assert.True(t, errors.IsType(m.SelectAddress(context.Background()), errors.TypeNotFound))
}

func TestSelectAddressManualWait(t *testing.T) {
	site := browsertest.NewSite().
		Page(home, homePage).
		Page(home+"bos", `<html><body></body></html>`)

	m, _ := newManager(t, site, Options{AddressWait: time.Hour})
	require.NoError(t, m.Open(context.Background()))

	start := time.Now()
	require.NoError(t, m.SelectAddress(context.Background()))
	assert.Less(t, time.Since(start), time.Second, "visible search input ends the wait")

	m, b := newManager(t, site, Options{AddressWait: 30 * time.Millisecond})
	require.NoError(t, b.Navigate(context.Background(), home+"bos", browser.WaitLoad, 0))
	assert.NoError(t, m.SelectAddress(context.Background()))
}
