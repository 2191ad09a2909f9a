package auth

import (
	"bytes"
	"context"
	"strings"
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

const base = "http://shop.test"

var creds = Credentials{Email: "ali@example.com", Password: "s3cret"}

func loginSite(passwordAction string) *browsertest.Site {
	return browsertest.NewSite().
		Page(base+"/", `<html><body><a href="/giris">Giriş Yap</a></body></html>`).
		Page(base+"/giris", `<html><body><form action="/giris/sifre">
			<input type="email" name="email"><button type="submit">Devam Et</button>
		</form></body></html>`).
		Page(base+"/giris/sifre?email=ali%40example.com", `<html><body><form action="`+passwordAction+`">
			<input type="password" name="password"><button type="submit">Giriş Yap</button>
		</form></body></html>`)
}

func newAuthenticator(t *testing.T, site *browsertest.Site, codes CodeProvider) (*Authenticator, *browser.StaticBrowser) {
	t.Helper()
	b, err := browser.NewStatic(browser.StaticOptions{Fetcher: site, Logger: logger.Nop()})
	require.NoError(t, err)
	require.NoError(t, b.Navigate(context.Background(), base+"/", browser.WaitLoad, 0))

	r := selector.NewResolver(b, 10*time.Millisecond).WithLogger(logger.Nop())
	a := NewAuthenticator(b, r, selector.DefaultCatalog(), codes, Options{
		ChallengeWait: 30 * time.Millisecond,
		CodeTimeout:   time.Second,
		SettleTimeout: 30 * time.Millisecond,
	}).WithLogger(logger.Nop())
	return a, b
}

func TestLoginWithSecondaryAuth(t *testing.T) {
	site := loginSite("/giris/kod").
		Page(base+"/giris/kod?password=s3cret", `<html><body><form action="/hesabim">
			<input name="otp" maxlength="6"><button type="submit">Doğrula</button>
		</form></body></html>`).
		Page(base+"/hesabim?otp=123456", `<html><body><div data-testid="user-menu">Ali</div></body></html>`)

	a, b := newAuthenticator(t, site, StaticCodeProvider{Code: " 123456 "})
	require.NoError(t, a.Login(context.Background(), creds))
	assert.Equal(t, base+"/hesabim?otp=123456", b.CurrentURL())

	// A second login is a no-op on a signed-in page.
	require.NoError(t, a.Login(context.Background(), creds))
	assert.Equal(t, 1, site.Count(base+"/hesabim?otp=123456"))
}

func TestLoginWithoutChallenge(t *testing.T) {
	site := loginSite("/").
		Page(base+"/?password=s3cret", `<html><body><input data-testid="search-input"></body></html>`)

	a, _ := newAuthenticator(t, site, StaticCodeProvider{})
	require.NoError(t, a.Login(context.Background(), creds))
}

func TestLoginFailures(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		a, _ := newAuthenticator(t, loginSite("/"), StaticCodeProvider{})
		err := a.Login(context.Background(), Credentials{Email: "ali@example.com"})
		assert.True(t, errors.IsType(err, errors.TypeAuthentication))
	})

	t.Run("rejected password", func(t *testing.T) {
		site := loginSite("/giris/hata").
			Page(base+"/giris/hata?password=s3cret", `<html><body><div data-testid="login-error">Hatalı şifre</div></body></html>`)
		a, _ := newAuthenticator(t, site, StaticCodeProvider{})
		err := a.Login(context.Background(), creds)
		assert.True(t, errors.IsType(err, errors.TypeAuthentication))
		assert.Contains(t, err.Error(), "not confirmed")
	})

	t.Run("no code available", func(t *testing.T) {
		site := loginSite("/giris/kod").
			Page(base+"/giris/kod?password=s3cret", `<html><body><input name="otp"></body></html>`)
		a, _ := newAuthenticator(t, site, StaticCodeProvider{})
		err := a.Login(context.Background(), creds)
		assert.True(t, errors.IsType(err, errors.TypeAuthentication))
		assert.ErrorIs(t, err, ErrEmptyCode)
	})

	t.Run("no login entry", func(t *testing.T) {
		site := browsertest.NewSite().Page(base+"/", `<html><body><p>Bakımdayız</p></body></html>`)
		a, _ := newAuthenticator(t, site, StaticCodeProvider{})
		err := a.Login(context.Background(), creds)
		assert.True(t, errors.IsType(err, errors.TypeAuthentication))
	})
}

func TestStatusRejectsLoginURLs(t *testing.T) {
	site := browsertest.NewSite().
		Page(base+"/", `<html><body></body></html>`).
		Page(base+"/auth/login", `<html><body><div data-testid="user-menu">Ali</div></body></html>`)
	a, b := newAuthenticator(t, site, StaticCodeProvider{})

	require.NoError(t, b.Navigate(context.Background(), base+"/auth/login", browser.WaitLoad, 0))
	assert.False(t, a.Status(context.Background()))
}

func TestReadMasked(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   error
		echo  string
	}{
		{"plain", "123456\r", "123456", nil, "******"},
		{"backspace and noise", "12a\x7f-3\n", "123", nil, "***\b \b*"},
		{"cancel", "12\x03", "", ErrCodeCancelled, "**"},
		{"empty", "\r", "", ErrEmptyCode, ""},
		{"eof with input", "99", "99", nil, "**"},
		{"eof without input", "", "", ErrCodeCancelled, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var echo bytes.Buffer
			got, err := readMasked(strings.NewReader(tt.input), &echo)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.echo, echo.String())
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticCodeProvider(t *testing.T) {
	code, err := StaticCodeProvider{Code: "A1B2"}.RequestCode(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "A1B2", code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StaticCodeProvider{Code: "A1B2"}.RequestCode(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
