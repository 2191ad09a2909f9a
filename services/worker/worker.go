package worker

import (
	"context"
	"io"
	"time"

	"sjsage522/menuscout/internal/auth"
	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/internal/selection"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
	"sjsage522/menuscout/services/publisher"
)

// Preparer readies the storefront before a crawl
type Preparer interface {
	Open(ctx context.Context) error
	AcceptCookies(ctx context.Context) bool
	SelectAddress(ctx context.Context) error
}

// Authenticator signs in to the storefront
type Authenticator interface {
	Login(ctx context.Context, creds auth.Credentials) error
}

// Crawler collects matching items from the vendor listing
type Crawler interface {
	Run(ctx context.Context, term string, maxVendors int) (*crawl.Session, error)
}

// Committer places the selected item in the cart
type Committer interface {
	Commit(ctx context.Context, result *selection.Result) *selection.Result
	Checkout(ctx context.Context) error
}

// Options configures a run
type Options struct {
	SearchTerm    string
	PriceCategory string
	MaxVendors    int

	// Credentials are used when an Authenticator is set.
	Credentials auth.Credentials
	Checkout    bool

	// Report receives the result table; nil disables it.
	Report io.Writer
}

// Runner chains one full run: session setup, crawl, selection, cart and
// publishing.
type Runner struct {
	session   Preparer
	auth      Authenticator
	crawler   Crawler
	committer Committer
	publisher publisher.Publisher
	opts      Options
	now       func() time.Time
	log       *logger.Logger
}

// NewRunner creates a runner. auth and pub may be nil.
func NewRunner(session Preparer, auth Authenticator, crawler Crawler, committer Committer, pub publisher.Publisher, opts Options) *Runner {
	return &Runner{
		session:   session,
		auth:      auth,
		crawler:   crawler,
		committer: committer,
		publisher: pub,
		opts:      opts,
		now:       time.Now,
		log:       logger.ForWorker(),
	}
}

// WithLogger replaces the runner's logger
func (r *Runner) WithLogger(l *logger.Logger) *Runner {
	r.log = l
	return r
}

// WithClock replaces the clock used to stamp records
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run performs one run. It returns the selection with its commit outcome.
// A crawl that finds nothing returns an EmptyResult error and the cart is
// never touched; commit, checkout and publishing failures are logged and
// reported on the result instead.
func (r *Runner) Run(ctx context.Context) (*selection.Result, error) {
	start := time.Now()

	if err := r.prepare(ctx); err != nil {
		return nil, err
	}

	session, err := r.crawler.Run(ctx, r.opts.SearchTerm, r.opts.MaxVendors)
	if err != nil {
		return nil, err
	}
	r.log.Info().
		Int("vendors", session.Visited).
		Int("items", session.Len()).
		Int("failures", len(session.Failures)).
		Msg("Crawl finished")
	for _, f := range session.Failures {
		r.log.Warn().Err(f.Err).Int("rank", f.Rank).Stringer("state", f.State).Msg("Vendor skipped")
	}

	result, err := selection.Select(session.Items(), r.opts.PriceCategory)
	if err != nil {
		r.log.Warn().Str("term", r.opts.SearchTerm).Msg("No matching items found, nothing to add to the cart")
		return nil, err
	}
	r.log.Info().
		Str("tier", result.Tier.String()).
		Str("item", result.Target.Name).
		Str("vendor", result.Target.VendorName).
		Float64("price", result.Target.Price).
		Msg("Target selected")

	result = r.committer.Commit(ctx, result)
	if result.Committed {
		r.log.Info().Str("item", result.Target.Name).Msg("Added to cart")
		if r.opts.Checkout {
			if err := r.committer.Checkout(ctx); err != nil {
				r.log.Warn().Err(err).Msg("Checkout could not be opened")
			}
		}
	} else {
		r.log.Error().Err(result.CommitError).Str("item", result.Target.Name).Msg("Add to cart failed")
	}

	r.publish(ctx, result)

	if r.opts.Report != nil {
		selection.Report(r.opts.Report, result)
	}

	r.log.Info().Dur("elapsed", time.Since(start)).Msg("Run finished")
	return result, ctx.Err()
}

func (r *Runner) prepare(ctx context.Context) error {
	if err := r.session.Open(ctx); err != nil {
		return err
	}
	r.session.AcceptCookies(ctx)

	if r.auth != nil {
		if err := r.auth.Login(ctx, r.opts.Credentials); err != nil {
			return err
		}
	}

	if err := r.session.SelectAddress(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.IsFatal(err) {
			return err
		}
		r.log.Warn().Err(err).Msg("Address selection failed, continuing")
	}
	return nil
}

func (r *Runner) publish(ctx context.Context, result *selection.Result) {
	if r.publisher == nil {
		return
	}
	records := publisher.RecordsFromResult(result, r.now())
	if err := r.publisher.Publish(ctx, records); err != nil {
		r.log.Error().Err(err).Int("records", len(records)).Msg("Publishing results failed")
	}
}

// IsEmpty reports whether err means the crawl found nothing to select
func IsEmpty(err error) bool {
	return errors.IsType(err, errors.TypeEmptyResult)
}
