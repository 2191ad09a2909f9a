// Package browsertest provides scripted in-memory storefronts for driving
// the static browser in tests.
package browsertest

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"
	"sync"

	"sjsage522/menuscout/helpers"
)

// Site serves HTML by absolute URL and can fail chosen requests. It
// satisfies browser.Fetcher.
type Site struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]map[int]bool
	counts   map[string]int
	requests []string
}

// NewSite creates an empty site
func NewSite() *Site {
	return &Site{
		pages:    make(map[string]string),
		failures: make(map[string]map[int]bool),
		counts:   make(map[string]int),
	}
}

// Page registers the HTML served at rawURL
func (s *Site) Page(rawURL, body string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[rawURL] = body
	return s
}

// Fail makes the given 1-based request attempts for rawURL fail
func (s *Site) Fail(rawURL string, attempts ...int) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[rawURL] == nil {
		s.failures[rawURL] = make(map[int]bool)
	}
	for _, n := range attempts {
		s.failures[rawURL][n] = true
	}
	return s
}

// RateLimit makes every request for rawURL answer 429
func (s *Site) RateLimit(rawURL string) *Site {
	return s.Page(rawURL, rateLimited)
}

const rateLimited = "\x00429"

// Fetch implements browser.Fetcher
func (s *Site) Fetch(ctx context.Context, rawURL string) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, rawURL)
	s.counts[rawURL]++
	if s.failures[rawURL][s.counts[rawURL]] {
		return nil, fmt.Errorf("scripted failure for %s (attempt %d)", rawURL, s.counts[rawURL])
	}

	body, ok := s.pages[rawURL]
	if !ok {
		return nil, &helpers.StatusError{URL: rawURL, StatusCode: 404}
	}
	if body == rateLimited {
		return nil, &helpers.StatusError{URL: rawURL, StatusCode: 429, RetryAfter: "60"}
	}
	return strings.NewReader(body), nil
}

// Count returns how many times rawURL was requested
func (s *Site) Count(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[rawURL]
}

// Requests returns every requested URL in order
func (s *Site) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Item is one product row on a vendor page
type Item struct {
	Name     string
	Price    string
	Disabled bool
}

// Vendor is one listing entry with its menu
type Vendor struct {
	Name  string
	Slug  string
	Items []Item
	// NoLink renders the listing card without an anchor, like script-driven cards.
	NoLink bool
}

// Storefront lays out a listing at searchURL and one page per vendor under
// base, using the markup the default selector catalog expects. It returns
// the vendor page URLs in listing order.
func (s *Site) Storefront(base, searchURL string, vendors []Vendor) []string {
	var listing strings.Builder
	listing.WriteString(`<html><body><div class="search-results">`)

	urls := make([]string, 0, len(vendors))
	for _, v := range vendors {
		path := "/restaurant/" + url.PathEscape(v.Slug)
		urls = append(urls, base+path)

		if v.NoLink {
			fmt.Fprintf(&listing, `<div data-testid="restaurant-card" data-href="%s"><h3>%s</h3></div>`,
				path, html.EscapeString(v.Name))
		} else {
			fmt.Fprintf(&listing, `<div data-testid="restaurant-card"><a href="%s"><h3>%s</h3></a></div>`,
				path, html.EscapeString(v.Name))
		}

		s.Page(base+path, VendorPage(v))
	}
	listing.WriteString(`</div></body></html>`)
	s.Page(searchURL, listing.String())

	s.Page(base+"/sepet", `<html><body><h1>Sepetim</h1><button data-testid="checkout" data-href="/odeme">Ödeme</button></body></html>`)
	s.Page(base+"/odeme", `<html><body><h1>Ödeme</h1></body></html>`)
	return urls
}

// VendorPage renders a vendor menu
func VendorPage(v Vendor) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><header><h1 data-testid="restaurant-name">%s</h1>`, html.EscapeString(v.Name))
	b.WriteString(`<a data-testid="cart" href="/sepet">Sepet</a></header><main class="menu">`)
	for _, it := range v.Items {
		disabled := ""
		if it.Disabled {
			disabled = " disabled"
		}
		fmt.Fprintf(&b,
			`<div data-testid="product-item"><h3 class="product-name">%s</h3><span class="product-price">%s</span><button data-testid="add-to-cart"%s>Sepete Ekle</button></div>`,
			html.EscapeString(it.Name), html.EscapeString(it.Price), disabled)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}
