// Package session prepares the storefront for a crawl: it opens the site,
// deals with the cookie banner and picks the delivery address.
package session

import (
	"context"
	"fmt"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
)

// Strategy is one way of opening the storefront
type Strategy struct {
	Policy  browser.WaitPolicy
	Timeout time.Duration
}

// DefaultStrategies go from the strictest lifecycle event to the loosest.
var DefaultStrategies = []Strategy{
	{Policy: browser.WaitLoad, Timeout: 45 * time.Second},
	{Policy: browser.WaitDOMContentLoaded, Timeout: 30 * time.Second},
	{Policy: browser.WaitNetworkIdle, Timeout: 60 * time.Second},
	{Policy: browser.WaitCommit, Timeout: 20 * time.Second},
}

// Options configures a Manager
type Options struct {
	StorefrontURL string
	Strategies    []Strategy
	RetryPause    time.Duration
	// AddressName picks a saved address; empty waits for a manual choice.
	AddressName string
	AddressWait time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.Strategies) == 0 {
		o.Strategies = DefaultStrategies
	}
	if o.RetryPause <= 0 {
		o.RetryPause = 2 * time.Second
	}
	if o.AddressWait <= 0 {
		o.AddressWait = 15 * time.Second
	}
	return o
}

// Manager prepares a browser session
type Manager struct {
	browser  browser.Browser
	resolver *selector.Resolver
	catalog  *selector.Catalog
	opts     Options
	log      *logger.Logger
}

// NewManager creates a session manager
func NewManager(b browser.Browser, r *selector.Resolver, catalog *selector.Catalog, opts Options) *Manager {
	return &Manager{
		browser:  b,
		resolver: r,
		catalog:  catalog,
		opts:     opts.withDefaults(),
		log:      logger.ForSession(),
	}
}

// WithLogger replaces the manager's logger
func (m *Manager) WithLogger(l *logger.Logger) *Manager {
	m.log = l
	return m
}

// Open loads the storefront, trying each strategy in turn
func (m *Manager) Open(ctx context.Context) error {
	var lastErr error
	for i, s := range m.opts.Strategies {
		m.log.Info().Str("url", m.opts.StorefrontURL).Stringer("wait", s.Policy).Dur("timeout", s.Timeout).Msg("Opening storefront")

		err := m.browser.Navigate(ctx, m.opts.StorefrontURL, s.Policy, s.Timeout)
		if err == nil && m.browser.CurrentURL() != "" {
			m.log.Info().Str("url", m.browser.CurrentURL()).Msg("Storefront open")
			return nil
		}
		if err == nil {
			err = fmt.Errorf("page has no url")
		}
		lastErr = err
		m.log.Warn().Err(err).Stringer("wait", s.Policy).Msg("Storefront did not open")

		if i < len(m.opts.Strategies)-1 {
			if err := helpers.Sleep(ctx, m.opts.RetryPause); err != nil {
				return err
			}
		}
	}
	return errors.NewNavigation(m.opts.StorefrontURL,
		fmt.Sprintf("storefront unreachable after %d strategies", len(m.opts.Strategies)), lastErr)
}

// AcceptCookies dismisses the consent banner. It reports whether a banner
// control was clicked; having none is normal.
func (m *Manager) AcceptCookies(ctx context.Context) bool {
	for _, cands := range []selector.Candidates{m.catalog.CookieAccept, m.catalog.CookieClose} {
		match, err := m.resolver.Resolve(ctx, nil, cands)
		if err != nil {
			continue
		}
		if err := m.browser.Click(ctx, match.Handle); err != nil {
			m.log.Warn().Err(err).Str("query", match.Candidate.Query.String()).Msg("Cookie banner click failed")
			continue
		}
		m.log.Info().Str("query", match.Candidate.Query.String()).Msg("Cookie banner dismissed")
		return true
	}
	m.log.Debug().Msg("No cookie banner")
	return false
}

// SelectAddress picks the configured address, or waits up to AddressWait
// for the user to pick one in the browser.
func (m *Manager) SelectAddress(ctx context.Context) error {
	if m.opts.AddressName == "" {
		m.log.Info().Dur("wait", m.opts.AddressWait).Msg("Select a delivery address in the browser")
		ready := helpers.WaitUntil(ctx, m.opts.AddressWait, 0, func() bool {
			_, ok := m.resolver.Probe(ctx, nil, m.catalog.SearchInput)
			return ok
		})
		if !ready {
			m.log.Warn().Msg("Search input still hidden, continuing without an address")
		}
		return ctx.Err()
	}

	if open, err := m.resolver.Resolve(ctx, nil, m.catalog.AddressOpen); err == nil {
		if err := m.browser.Click(ctx, open.Handle); err != nil {
			m.log.Warn().Err(err).Msg("Address selector click failed")
		}
	}

	options := make(selector.Candidates, len(m.catalog.AddressOption))
	for i, c := range m.catalog.AddressOption {
		c.HasText = m.opts.AddressName
		options[i] = c
	}
	match, err := m.resolver.Resolve(ctx, nil, options)
	if err != nil {
		return err
	}
	if err := m.browser.Click(ctx, match.Handle); err != nil {
		return errors.NewNavigation(m.opts.StorefrontURL, "address click", err)
	}
	m.log.Info().Str("address", m.opts.AddressName).Msg("Delivery address selected")
	return nil
}
