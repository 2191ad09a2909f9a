// Package crawl visits the vendors of a search listing one by one and
// collects the menu items that match the search phrase.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
)

// DefaultUnknownVendor names vendors whose page shows no name
const DefaultUnknownVendor = "Unknown vendor"

// Matcher decides whether an item name satisfies the search phrase
type Matcher interface {
	Match(name, phrase string) bool
}

// PriceParser validates price text
type PriceParser interface {
	Parse(raw string) (float64, error)
}

// Options configures a Controller
type Options struct {
	// SearchURL builds the listing URL for a search term.
	SearchURL           func(term string) string
	MaxItemsPerVendor   int
	NavigationTimeout   time.Duration
	SettleTimeout       time.Duration
	MaxRecoveryAttempts int
	UnknownVendorName   string
}

func (o Options) withDefaults() Options {
	if o.MaxItemsPerVendor <= 0 {
		o.MaxItemsPerVendor = 10
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 10 * time.Second
	}
	if o.MaxRecoveryAttempts < 0 {
		o.MaxRecoveryAttempts = 0
	}
	if o.UnknownVendorName == "" {
		o.UnknownVendorName = DefaultUnknownVendor
	}
	return o
}

// Controller drives the listing/vendor state machine
type Controller struct {
	browser  browser.Browser
	resolver *selector.Resolver
	catalog  *selector.Catalog
	matcher  Matcher
	prices   PriceParser
	opts     Options
	metrics  *Metrics
	log      *logger.Logger
}

// NewController creates a crawl controller
func NewController(b browser.Browser, r *selector.Resolver, catalog *selector.Catalog, m Matcher, p PriceParser, opts Options) *Controller {
	return &Controller{
		browser:  b,
		resolver: r,
		catalog:  catalog,
		matcher:  m,
		prices:   p,
		opts:     opts.withDefaults(),
		log:      logger.ForCrawl(),
	}
}

// WithMetrics attaches metrics; nil disables them
func (c *Controller) WithMetrics(m *Metrics) *Controller {
	c.metrics = m
	return c
}

// WithLogger replaces the controller's logger
func (c *Controller) WithLogger(l *logger.Logger) *Controller {
	c.log = l
	return c
}

// run is the mutable state of one Run call
type run struct {
	*Controller
	session    *Session
	next       int
	current    VendorEntry
	listingGen uint64
	visitStart time.Time
}

// Run crawls up to maxVendors vendors of the listing for term. Navigation
// and extraction failures never abort the crawl: the session holds
// whatever was collected. Only context cancellation returns an error,
// together with the partial session.
func (c *Controller) Run(ctx context.Context, term string, maxVendors int) (*Session, error) {
	r := &run{Controller: c, session: NewSession(term, maxVendors)}
	if err := ctx.Err(); err != nil {
		return r.session, err
	}

	c.log.Info().Str("term", term).Int("max_vendors", maxVendors).Msg("Starting crawl")

	state := StateListing
	if err := r.openListing(ctx); err != nil {
		r.fail(StateListing, err)
		state = StateRecovering
	}

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			c.log.Warn().Int("visited", r.session.Visited).Int("items", r.session.Len()).Msg("Crawl cancelled")
			return r.session, err
		}
		c.metrics.IncState(state)

		next := r.step(ctx, state)
		c.log.Debug().Stringer("from", state).Stringer("to", next).Int("rank", r.current.Rank).Msg("Transition")
		state = next
	}
	c.metrics.IncState(StateDone)

	c.log.Info().
		Str("term", term).
		Int("visited", r.session.Visited).
		Int("items", r.session.Len()).
		Int("failures", len(r.session.Failures)).
		Msg("Crawl finished")
	return r.session, ctx.Err()
}

func (r *run) step(ctx context.Context, state State) State {
	switch state {
	case StateListing:
		return r.listing(ctx)
	case StateVisitingVendor:
		return r.visit(ctx)
	case StateExtractingItems:
		return r.extract(ctx)
	case StateReturning:
		return r.returnToListing(ctx)
	case StateRecovering:
		return r.recoverListing(ctx)
	default:
		return StateDone
	}
}

// openListing navigates to the search listing and waits for vendor cards
func (r *run) openListing(ctx context.Context) error {
	target := r.opts.SearchURL(r.session.SearchTerm)
	if err := r.browser.Navigate(ctx, target, browser.WaitLoad, r.opts.NavigationTimeout); err != nil {
		return err
	}
	if _, err := r.resolver.Resolve(ctx, nil, r.catalog.VendorCards); err != nil {
		return errors.NewNavigation(target, "listing shows no vendor cards", err)
	}
	return nil
}

func (r *run) listing(ctx context.Context) State {
	if r.session.Visited >= r.session.MaxVendors {
		return StateDone
	}

	cards, _, err := r.resolver.ResolveAll(ctx, nil, r.catalog.VendorCards)
	if err != nil {
		r.log.Info().Err(err).Msg("No vendor cards on the listing")
		return StateDone
	}
	limit := min(len(cards), r.session.MaxVendors)
	if r.next >= limit {
		return StateDone
	}

	card := cards[r.next]
	r.listingGen = r.browser.Generation()
	r.current = VendorEntry{
		Rank:      r.next + 1,
		Reference: card,
		Link:      r.linkOf(ctx, card),
	}
	return StateVisitingVendor
}

// linkOf returns the card's absolute deep-link, or "" when it has none
func (r *run) linkOf(ctx context.Context, card browser.Handle) string {
	href, _ := r.browser.Attribute(ctx, card, "href")
	if strings.TrimSpace(href) == "" {
		if a, ok := r.browser.Locate(ctx, card, browser.Query{CSS: "a[href]"}); ok {
			href, _ = r.browser.Attribute(ctx, a, "href")
		}
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(r.browser.CurrentURL())
	if err != nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func (r *run) visit(ctx context.Context) State {
	r.session.Visited++
	r.next++
	r.visitStart = time.Now()
	r.metrics.IncVendor()

	if err := r.browser.Click(ctx, r.current.Reference); err != nil {
		return r.fail(StateVisitingVendor, err)
	}

	settled := helpers.WaitUntil(ctx, r.opts.SettleTimeout, 0, func() bool {
		_, ok := r.resolver.Probe(ctx, nil, r.catalog.VendorReady)
		return ok
	})
	if !settled {
		r.log.Warn().Int("rank", r.current.Rank).Dur("timeout", r.opts.SettleTimeout).Msg("Vendor page did not settle, extracting anyway")
	}
	return StateExtractingItems
}

func (r *run) extract(ctx context.Context) State {
	defer func() { r.metrics.ObserveVendor(time.Since(r.visitStart)) }()

	rows, _, err := r.resolver.ResolveAll(ctx, nil, r.catalog.ProductItems)
	if err != nil {
		if errors.IsType(err, errors.TypeNotFound) {
			r.log.Info().Int("rank", r.current.Rank).Msg("Vendor shows no product rows")
			return StateReturning
		}
		return r.fail(StateExtractingItems, err)
	}
	if len(rows) > r.opts.MaxItemsPerVendor {
		rows = rows[:r.opts.MaxItemsPerVendor]
	}

	vendorName := r.vendorName(ctx)
	log := r.log.ForVendor(r.current.Rank, vendorName)

	var items []MenuItem
	for _, row := range rows {
		if browser.IsStale(r.browser, row) {
			return r.fail(StateExtractingItems, errors.NewStaleReference(
				fmt.Sprintf("product rows of vendor %d outlived their page", r.current.Rank)))
		}
		item, ok := r.extractItem(ctx, row)
		if !ok {
			continue
		}
		item.VendorName = vendorName
		items = append(items, item)
		log.Debug().Str("item", item.Name).Float64("price", item.Price).Msg("Accepted item")
	}

	r.session.Add(items...)
	r.metrics.AddItems(len(items))
	log.Info().Int("rows", len(rows)).Int("accepted", len(items)).Msg("Extracted vendor")
	return StateReturning
}

func (r *run) vendorName(ctx context.Context) string {
	m, err := r.resolver.Resolve(ctx, nil, r.catalog.VendorName)
	if err != nil {
		return r.opts.UnknownVendorName
	}
	text, err := r.browser.TextContent(ctx, m.Handle)
	if name := helpers.CollapseSpace(text); err == nil && name != "" {
		return name
	}
	return r.opts.UnknownVendorName
}

// extractItem reads one product row. Rows whose name does not match or
// whose price does not validate are skipped.
func (r *run) extractItem(ctx context.Context, row browser.Handle) (MenuItem, bool) {
	m, err := r.resolver.Resolve(ctx, row, r.catalog.ProductName)
	if err != nil {
		return MenuItem{}, false
	}
	text, err := r.browser.TextContent(ctx, m.Handle)
	name := helpers.CollapseSpace(text)
	if err != nil || name == "" {
		return MenuItem{}, false
	}
	if !r.matcher.Match(name, r.session.SearchTerm) {
		r.log.Debug().Str("item", name).Msg("Name does not match")
		return MenuItem{}, false
	}

	var value float64
	_, err = r.resolver.ResolveWith(ctx, row, r.catalog.ProductPrice, func(h browser.Handle) bool {
		raw, err := r.browser.TextContent(ctx, h)
		if err != nil {
			return false
		}
		v, err := r.prices.Parse(raw)
		if err != nil {
			return false
		}
		value = v
		return true
	})
	if err != nil {
		r.log.Debug().Str("item", name).Msg("No valid price")
		return MenuItem{}, false
	}

	return MenuItem{
		Name:       name,
		Price:      value,
		VendorRank: r.current.Rank,
		SearchTerm: r.session.SearchTerm,
		Vendor: VendorRef{
			Rank:   r.current.Rank,
			Link:   r.current.Link,
			Handle: r.current.Reference,
		},
	}, true
}

func (r *run) returnToListing(ctx context.Context) State {
	// A click that did not navigate leaves the listing in place.
	if r.browser.Generation() != r.listingGen {
		if err := r.browser.GoBack(ctx); err != nil {
			return r.fail(StateReturning, err)
		}
	}

	visible := helpers.WaitUntil(ctx, r.opts.NavigationTimeout, 0, func() bool {
		_, ok := r.resolver.Probe(ctx, nil, r.catalog.VendorCards)
		return ok
	})
	if !visible {
		return r.fail(StateReturning, errors.NewNavigation(r.browser.CurrentURL(), "listing not visible after going back", nil))
	}
	return StateListing
}

func (r *run) recoverListing(ctx context.Context) State {
	for attempt := 1; attempt <= r.opts.MaxRecoveryAttempts; attempt++ {
		if ctx.Err() != nil {
			return StateDone
		}
		r.metrics.IncRecovery()

		err := r.openListing(ctx)
		if err == nil {
			r.log.Info().Int("attempt", attempt).Msg("Listing reconstructed")
			return StateListing
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Int("max", r.opts.MaxRecoveryAttempts).Msg("Listing reconstruction failed")
	}

	r.log.Error().
		Int("visited", r.session.Visited).
		Int("items", r.session.Len()).
		Msg("Giving up on the listing, keeping partial results")
	return StateDone
}

// fail records the current vendor's failure and moves to recovery
func (r *run) fail(state State, err error) State {
	r.session.Failures = append(r.session.Failures, VendorFailure{
		Rank:  r.current.Rank,
		State: state,
		Err:   err,
	})

	errType := string(errors.TypeOf(err))
	if errType == "" {
		errType = "unknown"
	}
	r.metrics.IncError(errType)
	r.log.Warn().Err(err).Int("rank", r.current.Rank).Stringer("state", state).Msg("Vendor visit failed")
	return StateRecovering
}
