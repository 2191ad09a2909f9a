// Package auth signs in to the storefront, including the one-time code
// challenge some accounts get after the password step.
package auth

import (
	"context"
	"strings"
	"time"

	"sjsage522/menuscout/helpers"
	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/pkg/errors"
)

// Credentials are the storefront account's sign-in details
type Credentials struct {
	Email    string
	Password string
}

// Options configures an Authenticator
type Options struct {
	// ChallengeWait bounds the wait for the code input after the password step.
	ChallengeWait time.Duration
	CodeTimeout   time.Duration
	SettleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ChallengeWait <= 0 {
		o.ChallengeWait = 15 * time.Second
	}
	if o.CodeTimeout <= 0 {
		o.CodeTimeout = 5 * time.Minute
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = 5 * time.Second
	}
	return o
}

// Authenticator drives the sign-in form
type Authenticator struct {
	browser  browser.Browser
	resolver *selector.Resolver
	catalog  *selector.Catalog
	codes    CodeProvider
	opts     Options
	log      *logger.Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(b browser.Browser, r *selector.Resolver, catalog *selector.Catalog, codes CodeProvider, opts Options) *Authenticator {
	return &Authenticator{
		browser:  b,
		resolver: r,
		catalog:  catalog,
		codes:    codes,
		opts:     opts.withDefaults(),
		log:      logger.ForSession(),
	}
}

// WithLogger replaces the authenticator's logger
func (a *Authenticator) WithLogger(l *logger.Logger) *Authenticator {
	a.log = l
	return a
}

// Login signs in from the current page. Every failure is an
// authentication error.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return errors.NewAuthentication("STOREFRONT_EMAIL and STOREFRONT_PASSWORD are required", nil)
	}
	if _, ok := a.resolver.Probe(ctx, nil, a.catalog.LoggedIn); ok {
		a.log.Info().Msg("Already signed in")
		return nil
	}

	a.log.Info().Msg("Signing in")
	if err := a.click(ctx, a.catalog.LoginOpen, "login entry"); err != nil {
		return err
	}

	email, err := a.resolver.Resolve(ctx, nil, a.catalog.EmailInput)
	if err != nil {
		return errors.NewAuthentication("email input not found", err)
	}
	if err := a.browser.Fill(ctx, email.Handle, creds.Email); err != nil {
		return errors.NewAuthentication("email input", err)
	}
	if err := a.submit(ctx, a.catalog.LoginContinue, email.Handle); err != nil {
		return err
	}

	password, err := a.resolver.Resolve(ctx, nil, a.catalog.PasswordInput)
	if err != nil {
		return errors.NewAuthentication("password input not found", err)
	}
	if err := a.browser.Fill(ctx, password.Handle, creds.Password); err != nil {
		return errors.NewAuthentication("password input", err)
	}
	if err := a.submit(ctx, a.catalog.LoginSubmit, password.Handle); err != nil {
		return err
	}

	if err := a.challenge(ctx); err != nil {
		return err
	}

	helpers.WaitUntil(ctx, a.opts.SettleTimeout, 0, func() bool {
		_, ok := a.resolver.Probe(ctx, nil, a.catalog.LoggedIn)
		return ok
	})
	if !a.Status(ctx) {
		return errors.NewAuthentication("sign-in not confirmed at "+a.browser.CurrentURL(), nil)
	}
	a.log.Info().Msg("Signed in")
	return nil
}

// challenge answers the one-time code prompt when one appears
func (a *Authenticator) challenge(ctx context.Context) error {
	var input selector.Match
	appeared := helpers.WaitUntil(ctx, a.opts.ChallengeWait, 0, func() bool {
		m, ok := a.resolver.Probe(ctx, nil, a.catalog.SecondaryAuthInput)
		input = m
		return ok
	})
	if !appeared {
		a.log.Debug().Msg("No secondary auth challenge")
		return nil
	}

	a.log.Info().Dur("timeout", a.opts.CodeTimeout).Msg("Secondary auth code required")
	code, err := a.codes.RequestCode(ctx, a.opts.CodeTimeout)
	if err != nil {
		return errors.NewAuthentication("secondary auth code", err)
	}
	a.log.Info().Int("length", len(code)).Msg("Secondary auth code received")

	if browser.IsStale(a.browser, input.Handle) {
		return errors.NewAuthentication("secondary auth input went away", nil)
	}
	if err := a.browser.Fill(ctx, input.Handle, code); err != nil {
		return errors.NewAuthentication("secondary auth input", err)
	}
	return a.submit(ctx, a.catalog.SecondaryAuthVerify, input.Handle)
}

// Status reports whether the current page looks signed in
func (a *Authenticator) Status(ctx context.Context) bool {
	current := strings.ToLower(a.browser.CurrentURL())
	for _, marker := range []string{"login", "signin", "auth"} {
		if strings.Contains(current, marker) {
			return false
		}
	}
	if _, failed := a.resolver.Probe(ctx, nil, a.catalog.LoginError); failed {
		return false
	}
	if _, ok := a.resolver.Probe(ctx, nil, a.catalog.LoggedIn); ok {
		return true
	}
	_, ok := a.resolver.Probe(ctx, nil, a.catalog.SearchInput)
	return ok
}

func (a *Authenticator) click(ctx context.Context, cands selector.Candidates, what string) error {
	m, err := a.resolver.Resolve(ctx, nil, cands)
	if err != nil {
		return errors.NewAuthentication(what+" not found", err)
	}
	if err := a.browser.Click(ctx, m.Handle); err != nil {
		return errors.NewAuthentication(what+" click", err)
	}
	return nil
}

// submit clicks the step's button, or presses Enter in field without one
func (a *Authenticator) submit(ctx context.Context, cands selector.Candidates, field browser.Handle) error {
	if m, err := a.resolver.Resolve(ctx, nil, cands); err == nil {
		if err := a.browser.Click(ctx, m.Handle); err != nil {
			return errors.NewAuthentication("submit click", err)
		}
		return nil
	}
	if err := a.browser.Press(ctx, field, "Enter"); err != nil {
		return errors.NewAuthentication("submit with Enter", err)
	}
	return nil
}
