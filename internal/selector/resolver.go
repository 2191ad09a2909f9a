package selector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
)

// Candidate is one query descriptor with its own visibility timeout. A zero
// timeout means the resolver default.
type Candidate struct {
	browser.Query `mapstructure:",squash"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Candidates is an ordered priority list; earlier entries win.
type Candidates []Candidate

// CSS builds candidates from plain selectors
func CSS(selectors ...string) Candidates {
	cands := make(Candidates, 0, len(selectors))
	for _, s := range selectors {
		cands = append(cands, Candidate{Query: browser.Query{CSS: s}})
	}
	return cands
}

// Text builds a candidate matching css elements containing text
func Text(css, text string) Candidate {
	return Candidate{Query: browser.Query{CSS: css, HasText: text}}
}

// WithTimeout returns a copy with every timeout set to d
func (c Candidates) WithTimeout(d time.Duration) Candidates {
	out := make(Candidates, len(c))
	for i, cand := range c {
		cand.Timeout = d
		out[i] = cand
	}
	return out
}

func (c Candidates) String() string {
	parts := make([]string, len(c))
	for i, cand := range c {
		parts[i] = cand.Query.String()
	}
	return strings.Join(parts, ", ")
}

// Match is the winning candidate of a resolution
type Match struct {
	Handle    browser.Handle
	Index     int
	Candidate Candidate
}

// Resolver probes candidate lists against a browser
type Resolver struct {
	browser        browser.Browser
	defaultTimeout time.Duration
	log            *logger.Logger
}

// NewResolver creates a resolver; candidates without a timeout wait up to
// defaultTimeout for visibility.
func NewResolver(b browser.Browser, defaultTimeout time.Duration) *Resolver {
	return &Resolver{
		browser:        b,
		defaultTimeout: defaultTimeout,
		log:            logger.ForComponent("selector"),
	}
}

// WithLogger replaces the resolver's logger
func (r *Resolver) WithLogger(l *logger.Logger) *Resolver {
	r.log = l
	return r
}

func (r *Resolver) timeout(c Candidate) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return r.defaultTimeout
}

// Resolve returns the first candidate whose match becomes visible within
// its timeout. Candidates are tried strictly in order.
func (r *Resolver) Resolve(ctx context.Context, scope browser.Handle, cands Candidates) (Match, error) {
	return r.ResolveWith(ctx, scope, cands, nil)
}

// ResolveWith is Resolve with an extra acceptance test on the visible match.
func (r *Resolver) ResolveWith(ctx context.Context, scope browser.Handle, cands Candidates, accept func(browser.Handle) bool) (Match, error) {
	for i, c := range cands {
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		h, ok := r.browser.Locate(ctx, scope, c.Query)
		if !ok || !r.browser.IsVisible(ctx, h, r.timeout(c)) {
			continue
		}
		if accept != nil && !accept(h) {
			continue
		}
		r.log.Debug().Int("index", i).Str("query", c.Query.String()).Msg("Candidate matched")
		return Match{Handle: h, Index: i, Candidate: c}, nil
	}
	return Match{}, notFound(cands)
}

// Probe is Resolve without waiting: each candidate is checked once.
func (r *Resolver) Probe(ctx context.Context, scope browser.Handle, cands Candidates) (Match, bool) {
	for i, c := range cands {
		if ctx.Err() != nil {
			return Match{}, false
		}
		h, ok := r.browser.Locate(ctx, scope, c.Query)
		if ok && r.browser.IsVisible(ctx, h, 0) {
			return Match{Handle: h, Index: i, Candidate: c}, true
		}
	}
	return Match{}, false
}

// ResolveAll returns the visible elements of the first candidate whose
// first match becomes visible, in document order.
func (r *Resolver) ResolveAll(ctx context.Context, scope browser.Handle, cands Candidates) ([]browser.Handle, Match, error) {
	for i, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, Match{}, err
		}
		first, ok := r.browser.Locate(ctx, scope, c.Query)
		if !ok || !r.browser.IsVisible(ctx, first, r.timeout(c)) {
			continue
		}

		var visible []browser.Handle
		for _, h := range r.browser.LocateAll(ctx, scope, c.Query) {
			if r.browser.IsVisible(ctx, h, 0) {
				visible = append(visible, h)
			}
		}
		if len(visible) == 0 {
			continue
		}

		r.log.Debug().
			Int("index", i).
			Int("count", len(visible)).
			Str("query", c.Query.String()).
			Msg("Candidate matched")
		return visible, Match{Handle: first, Index: i, Candidate: c}, nil
	}
	return nil, Match{}, notFound(cands)
}

func notFound(cands Candidates) error {
	return errors.NewNotFound(fmt.Sprintf("none of %d candidates visible [%s]", len(cands), cands))
}
