// Package cart puts the selected item into the storefront cart.
package cart

import (
	"context"
	"fmt"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/internal/matcher"
	"sjsage522/menuscout/internal/selection"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"

	"github.com/antzucaro/matchr"
)

// DefaultIdentityThreshold is the Jaro-Winkler similarity a vendor found by
// rank must reach against the name recorded during the crawl.
const DefaultIdentityThreshold = 0.85

// Options configures a Placer
type Options struct {
	SearchURL         func(term string) string
	RelocateByLink    bool
	NavigationTimeout time.Duration
	SettleTimeout     time.Duration
	IdentityThreshold float64
	UnknownVendorName string
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 10 * time.Second
	}
	if o.IdentityThreshold <= 0 {
		o.IdentityThreshold = DefaultIdentityThreshold
	}
	if o.UnknownVendorName == "" {
		o.UnknownVendorName = crawl.DefaultUnknownVendor
	}
	return o
}

// Placer relocates the target's vendor and clicks its add-to-cart control
type Placer struct {
	browser  browser.Browser
	resolver *selector.Resolver
	catalog  *selector.Catalog
	opts     Options
	metrics  *crawl.Metrics
	log      *logger.Logger
}

// NewPlacer creates a cart placer
func NewPlacer(b browser.Browser, r *selector.Resolver, catalog *selector.Catalog, opts Options) *Placer {
	return &Placer{
		browser:  b,
		resolver: r,
		catalog:  catalog,
		opts:     opts.withDefaults(),
		log:      logger.ForCart(),
	}
}

// WithMetrics attaches metrics; nil disables them
func (p *Placer) WithMetrics(m *crawl.Metrics) *Placer {
	p.metrics = m
	return p
}

// WithLogger replaces the placer's logger
func (p *Placer) WithLogger(l *logger.Logger) *Placer {
	p.log = l
	return p
}

// Commit adds result's target to the cart and records the outcome on
// result, which is returned. A failed commit never panics or aborts: it
// leaves Committed false with the cause in CommitError.
func (p *Placer) Commit(ctx context.Context, result *selection.Result) *selection.Result {
	if result == nil {
		return nil
	}
	item := result.Target
	log := p.log.ForVendor(item.VendorRank, item.VendorName)

	if err := p.commit(ctx, item); err != nil {
		result.Committed = false
		result.CommitError = err
		p.metrics.IncCommit("failed")
		log.Error().Err(err).Str("item", item.Name).Msg("Could not add item to cart")
		return result
	}

	result.Committed = true
	result.CommitError = nil
	p.metrics.IncCommit("committed")
	log.Info().Str("item", item.Name).Float64("price", item.Price).Msg("Item added to cart")
	return result
}

func (p *Placer) commit(ctx context.Context, item crawl.MenuItem) error {
	if err := p.relocate(ctx, item); err != nil {
		return err
	}

	row, err := p.findRow(ctx, item.Name)
	if err != nil {
		return errors.NewCommit(item.VendorName, fmt.Sprintf("item %q not on the vendor page", item.Name), err)
	}

	button, err := p.resolver.Resolve(ctx, row, p.catalog.AddToCart)
	if err != nil {
		p.log.Debug().Msg("No add-to-cart control in the item row, trying page-wide")
		if button, err = p.resolver.Resolve(ctx, nil, p.catalog.AddToCart); err != nil {
			return errors.NewCommit(item.VendorName, "no add-to-cart control", err)
		}
	}
	if err := p.browser.Click(ctx, button.Handle); err != nil {
		return errors.NewCommit(item.VendorName, "add-to-cart click failed", err)
	}
	return nil
}

// relocate opens the item's vendor page. The captured card is used while
// its document is current, then the deep-link, then the listing rank.
func (p *Placer) relocate(ctx context.Context, item crawl.MenuItem) error {
	ref := item.Vendor

	if ref.Handle != nil && !browser.IsStale(p.browser, ref.Handle) {
		if err := p.browser.Click(ctx, ref.Handle); err == nil {
			p.log.Debug().Int("rank", ref.Rank).Msg("Relocated through the captured card")
			p.settle(ctx)
			return nil
		}
	}

	if p.opts.RelocateByLink && ref.Link != "" {
		err := p.browser.Navigate(ctx, ref.Link, browser.WaitLoad, p.opts.NavigationTimeout)
		if err == nil {
			p.log.Debug().Str("link", ref.Link).Msg("Relocated through the deep-link")
			p.settle(ctx)
			return nil
		}
		p.log.Warn().Err(err).Str("link", ref.Link).Msg("Deep-link failed, falling back to the listing rank")
	}

	return p.relocateByRank(ctx, item)
}

func (p *Placer) relocateByRank(ctx context.Context, item crawl.MenuItem) error {
	rank := item.Vendor.Rank
	if rank <= 0 {
		rank = item.VendorRank
	}

	target := p.opts.SearchURL(item.SearchTerm)
	if err := p.browser.Navigate(ctx, target, browser.WaitLoad, p.opts.NavigationTimeout); err != nil {
		return errors.NewCommit(item.VendorName, "listing navigation failed", err)
	}
	cards, _, err := p.resolver.ResolveAll(ctx, nil, p.catalog.VendorCards)
	if err != nil {
		return errors.NewCommit(item.VendorName, "listing shows no vendor cards", err)
	}
	if rank <= 0 || rank > len(cards) {
		return errors.NewCommit(item.VendorName, fmt.Sprintf("listing has %d vendors, rank %d is gone", len(cards), rank), nil)
	}
	if err := p.browser.Click(ctx, cards[rank-1]); err != nil {
		return errors.NewCommit(item.VendorName, "vendor click failed", err)
	}
	p.settle(ctx)

	return p.verifyVendor(ctx, item, rank)
}

// verifyVendor guards the rank path against a reordered listing
func (p *Placer) verifyVendor(ctx context.Context, item crawl.MenuItem, rank int) error {
	if item.VendorName == "" || item.VendorName == p.opts.UnknownVendorName {
		return nil
	}

	m, err := p.resolver.Resolve(ctx, nil, p.catalog.VendorName)
	if err != nil {
		return errors.NewCommit(item.VendorName, fmt.Sprintf("vendor at rank %d shows no name", rank), err)
	}
	text, err := p.browser.TextContent(ctx, m.Handle)
	if err != nil {
		return errors.NewCommit(item.VendorName, "vendor name unreadable", err)
	}
	found := helpers.CollapseSpace(text)

	score := matchr.JaroWinkler(matcher.Normalize(item.VendorName), matcher.Normalize(found), false)
	if score < p.opts.IdentityThreshold {
		return errors.NewCommit(item.VendorName,
			fmt.Sprintf("vendor drift: rank %d now shows %q (similarity %.2f)", rank, found, score), nil)
	}
	p.log.Debug().Str("found", found).Float64("similarity", score).Msg("Vendor identity confirmed")
	return nil
}

// findRow returns the product row whose name equals name
func (p *Placer) findRow(ctx context.Context, name string) (browser.Handle, error) {
	rows, _, err := p.resolver.ResolveAll(ctx, nil, p.catalog.ProductItems)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		m, err := p.resolver.Resolve(ctx, row, p.catalog.ProductName)
		if err != nil {
			continue
		}
		text, err := p.browser.TextContent(ctx, m.Handle)
		if err == nil && helpers.CollapseSpace(text) == helpers.CollapseSpace(name) {
			return row, nil
		}
	}
	return nil, errors.NewNotFound(fmt.Sprintf("no row named %q among %d", name, len(rows)))
}

func (p *Placer) settle(ctx context.Context) {
	helpers.WaitUntil(ctx, p.opts.SettleTimeout, 0, func() bool {
		_, ok := p.resolver.Probe(ctx, nil, p.catalog.VendorReady)
		return ok
	})
}

// Checkout opens the cart and then the checkout step. Callers treat a
// failure as a warning: the item is already in the cart.
func (p *Placer) Checkout(ctx context.Context) error {
	cart, err := p.resolver.Resolve(ctx, nil, p.catalog.Cart)
	if err != nil {
		return errors.NewCommit("", "cart control not found", err)
	}
	if err := p.browser.Click(ctx, cart.Handle); err != nil {
		return errors.NewCommit("", "cart click failed", err)
	}

	helpers.WaitUntil(ctx, p.opts.SettleTimeout, 0, func() bool {
		_, ok := p.resolver.Probe(ctx, nil, p.catalog.Checkout)
		return ok
	})
	checkout, err := p.resolver.Resolve(ctx, nil, p.catalog.Checkout)
	if err != nil {
		return errors.NewCommit("", "checkout control not found", err)
	}
	if err := p.browser.Click(ctx, checkout.Handle); err != nil {
		return errors.NewCommit("", "checkout click failed", err)
	}

	p.log.Info().Str("url", p.browser.CurrentURL()).Msg("Proceeded to checkout")
	return nil
}
