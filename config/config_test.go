package config

import (
	"os"
	"testing"
	"time"

	"sjsage522/menuscout/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "https://www.trendyolyemek.com", config.StorefrontURL)
	assert.Equal(t, "margarita pizza", config.SearchTerm)
	assert.Equal(t, "cheap", config.PriceCategory)
	assert.Equal(t, 20, config.MaxVendors)
	assert.Equal(t, 10, config.MaxItemsPerVendor)
	assert.Equal(t, 10.0, config.MinValidPrice)
	assert.Equal(t, 5000.0, config.MaxValidPrice)
	assert.Equal(t, DriverPlaywright, config.Driver)
	assert.Equal(t, 30*time.Second, config.NavigationTimeout)
	assert.Equal(t, "data/results.csv", config.OutputFile)
	assert.True(t, config.LoginRequired)

	// Test with environment variables
	os.Setenv("STOREFRONT_URL", "http://localhost:8080/")
	os.Setenv("SEARCH_TERM", "lahmacun")
	os.Setenv("MAX_VENDORS", "5")
	os.Setenv("MIN_VALID_PRICE", "12.5")
	os.Setenv("BROWSER_DRIVER", "STATIC")
	os.Setenv("SETTLE_TIMEOUT", "4")
	os.Setenv("NAVIGATION_TIMEOUT", "1500ms")
	os.Setenv("HEADLESS", "true")

	config = LoadConfig()
	assert.Equal(t, "http://localhost:8080", config.StorefrontURL)
	assert.Equal(t, "lahmacun", config.SearchTerm)
	assert.Equal(t, 5, config.MaxVendors)
	assert.Equal(t, 12.5, config.MinValidPrice)
	assert.Equal(t, DriverStatic, config.Driver)
	assert.Equal(t, 4*time.Second, config.SettleTimeout)
	assert.Equal(t, 1500*time.Millisecond, config.NavigationTimeout)
	assert.True(t, config.Headless)

	// Clean up
	os.Unsetenv("STOREFRONT_URL")
	os.Unsetenv("SEARCH_TERM")
	os.Unsetenv("MAX_VENDORS")
	os.Unsetenv("MIN_VALID_PRICE")
	os.Unsetenv("BROWSER_DRIVER")
	os.Unsetenv("SETTLE_TIMEOUT")
	os.Unsetenv("NAVIGATION_TIMEOUT")
	os.Unsetenv("HEADLESS")
}

func TestSearchURL(t *testing.T) {
	config := LoadConfig()
	config.StorefrontURL = "http://localhost:8080"

	assert.Equal(t, "http://localhost:8080/arama?q=margarita+pizza", config.SearchURL(" margarita pizza "))

	config.SearchURLTemplate = "https://search.example.com/s?term={query}&city=eskisehir"
	assert.Equal(t, "https://search.example.com/s?term=k%C3%BC%C3%A7%C3%BCk+pide&city=eskisehir", config.SearchURL("küçük pide"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := LoadConfig()
		c.Email = "user@example.com"
		c.Password = "secret"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with credentials", func(c *Config) {}, false},
		{"missing credentials", func(c *Config) { c.Password = "" }, true},
		{"login not required", func(c *Config) { c.Email, c.Password, c.LoginRequired = "", "", false }, false},
		{"bad url", func(c *Config) { c.StorefrontURL = "not a url" }, true},
		{"template without query", func(c *Config) { c.SearchURLTemplate = "{base}/search" }, true},
		{"empty term", func(c *Config) { c.SearchTerm = "  " }, true},
		{"zero vendors", func(c *Config) { c.MaxVendors = 0 }, true},
		{"inverted bounds", func(c *Config) { c.MinValidPrice, c.MaxValidPrice = 100, 50 }, true},
		{"unknown driver", func(c *Config) { c.Driver = "selenium" }, true},
		{"zero settle timeout", func(c *Config) { c.SettleTimeout = 0 }, true},
		{"zero rate", func(c *Config) { c.NavigationRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.TypeConfiguration), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
