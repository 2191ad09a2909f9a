package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sjsage522/menuscout/internal/browser/browsertest"
	"sjsage522/menuscout/services/publisher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMatchCommand(t *testing.T) {
	out, err := execute(t, "match", "margarita pizza", "Margherita Pizza Small", "Margarita Kokteyl")
	require.NoError(t, err)

	assert.Contains(t, out, "Margherita Pizza Small")
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "Margarita Kokteyl")
	assert.Contains(t, out, `missing "pizza"`)

	_, err = execute(t, "match", "pizza")
	assert.Error(t, err, "at least one name is required")
}

func TestAnalyzeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	stamp := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	records := []publisher.Record{
		{SearchTerm: "margarita pizza", ItemName: "Margherita Pizza Small", VendorName: "Napoli", Price: 45, TierLabel: "cheap", Timestamp: stamp},
		{SearchTerm: "margarita pizza", ItemName: "Margherita Pizza Large", VendorName: "Roma", Price: 65, TierLabel: "mid", Timestamp: stamp},
		{SearchTerm: "lahmacun", ItemName: "Lahmacun", VendorName: "Urfa", Price: 30, TierLabel: "cheap", Timestamp: stamp},
	}
	require.NoError(t, publisher.NewCSVPublisher(path).Publish(context.Background(), records))

	out, err := execute(t, "analyze", "--category", "expensive", path)
	require.NoError(t, err)

	assert.Contains(t, out, "margarita pizza")
	assert.Contains(t, out, "lahmacun")
	assert.Contains(t, out, "55.00", "average of the pizza prices")
	assert.Contains(t, out, "» expensive")

	_, err = execute(t, "analyze", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

// storefrontServer serves a browsertest storefront over HTTP
func storefrontServer(t *testing.T, site *browsertest.Site) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := site.Fetch(r.Context(), "http://"+r.Host+r.URL.RequestURI())
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.Copy(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunCommandWithStaticDriver(t *testing.T) {
	site := browsertest.NewSite()
	server := storefrontServer(t, site)

	site.Page(server.URL+"/", `<html><body><input data-testid="search-input"></body></html>`)
	site.Storefront(server.URL, server.URL+"/arama?q=margarita+pizza", []browsertest.Vendor{
		{Name: "Napoli", Slug: "napoli", Items: []browsertest.Item{
			{Name: "Margherita Pizza Small", Price: "45,00 TL"},
		}},
		{Name: "Roma", Slug: "roma", Items: []browsertest.Item{
			{Name: "Margherita Pizza Large", Price: "65,00 TL"},
			{Name: "Margarita Kokteyl", Price: "90 TL"},
		}},
	})

	out := filepath.Join(t.TempDir(), "results.csv")
	t.Setenv("STOREFRONT_URL", server.URL)
	t.Setenv("LOGIN_REQUIRED", "false")
	t.Setenv("OUTPUT_FILE", out)
	t.Setenv("ADDRESS_WAIT", "50ms")
	t.Setenv("NAVIGATION_TIMEOUT", "5s")
	t.Setenv("SETTLE_TIMEOUT", "100ms")
	t.Setenv("SELECTOR_TIMEOUT", "50ms")
	t.Setenv("NAVIGATION_RATE", "1000")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("MEMCACHE_ADDR", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("SELECTORS_FILE", "")
	t.Setenv("CHROMEDB_ADDR", "")

	_, err := execute(t, "run", "--driver", "static", "--term", "margarita pizza", "--category", "expensive", "-n", "5")
	require.NoError(t, err)

	records, err := publisher.ReadCSV(out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Margherita Pizza Large", records[1].ItemName)
	assert.Equal(t, "expensive", records[1].TierLabel)

	assert.Equal(t, 1, site.Count(server.URL+"/odeme"), "checkout opened after the commit")
}

func TestRunCommandRejectsInvalidFlags(t *testing.T) {
	t.Setenv("LOGIN_REQUIRED", "false")

	_, err := execute(t, "run", "--driver", "firefox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROWSER_DRIVER")
}
