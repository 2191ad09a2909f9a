package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/menuscout/pkg/errors"
)

const (
	// DriverPlaywright drives a real Chromium through Playwright
	DriverPlaywright = "playwright"
	// DriverStatic queries fetched HTML documents without running scripts
	DriverStatic = "static"
)

// Config represents the application configuration
type Config struct {
	// Storefront
	StorefrontURL     string
	SearchURLTemplate string

	// Search and selection
	SearchTerm        string
	PriceCategory     string
	MaxVendors        int
	MaxItemsPerVendor int
	MinValidPrice     float64
	MaxValidPrice     float64

	// Browser
	Driver              string
	Headless            bool
	SlowMo              time.Duration
	NavigationTimeout   time.Duration
	SettleTimeout       time.Duration
	SelectorTimeout     time.Duration
	MaxRecoveryAttempts int
	NavigationRate      float64
	NavigationBurst     int
	Cooldown            time.Duration
	SelectorsFile       string
	ChromeDBAddr        string

	// Session
	LoginRequired        bool
	Email                string
	Password             string
	SecondaryAuthTimeout time.Duration
	SecondaryAuthCode    string
	AddressName          string
	AddressWait          time.Duration

	// Cart
	ProceedToCheckout bool
	RelocateByLink    bool

	// Output
	OutputFile           string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	storefront := strings.TrimRight(getEnv("STOREFRONT_URL", "https://www.trendyolyemek.com"), "/")

	return &Config{
		StorefrontURL:     storefront,
		SearchURLTemplate: getEnv("SEARCH_URL_TEMPLATE", "{base}/arama?q={query}"),

		SearchTerm:        getEnv("SEARCH_TERM", "margarita pizza"),
		PriceCategory:     getEnv("PRICE_CATEGORY", "cheap"),
		MaxVendors:        getEnvInt("MAX_VENDORS", 20),
		MaxItemsPerVendor: getEnvInt("MAX_ITEMS_PER_VENDOR", 10),
		MinValidPrice:     getEnvFloat("MIN_VALID_PRICE", 10),
		MaxValidPrice:     getEnvFloat("MAX_VALID_PRICE", 5000),

		Driver:              strings.ToLower(getEnv("BROWSER_DRIVER", DriverPlaywright)),
		Headless:            getEnvBool("HEADLESS", false),
		SlowMo:              getEnvDuration("SLOW_MO", 50*time.Millisecond),
		NavigationTimeout:   getEnvDuration("NAVIGATION_TIMEOUT", 30*time.Second),
		SettleTimeout:       getEnvDuration("SETTLE_TIMEOUT", 10*time.Second),
		SelectorTimeout:     getEnvDuration("SELECTOR_TIMEOUT", 3*time.Second),
		MaxRecoveryAttempts: getEnvInt("MAX_RECOVERY_ATTEMPTS", 2),
		NavigationRate:      getEnvFloat("NAVIGATION_RATE", 1),
		NavigationBurst:     getEnvInt("NAVIGATION_BURST", 2),
		Cooldown:            getEnvDuration("COOLDOWN", 5*time.Minute),
		SelectorsFile:       getEnv("SELECTORS_FILE", ""),
		ChromeDBAddr:        getEnv("CHROMEDB_ADDR", ""),

		LoginRequired:        getEnvBool("LOGIN_REQUIRED", true),
		Email:                getEnv("STOREFRONT_EMAIL", ""),
		Password:             getEnv("STOREFRONT_PASSWORD", ""),
		SecondaryAuthTimeout: getEnvDuration("SECONDARY_AUTH_TIMEOUT", 5*time.Minute),
		SecondaryAuthCode:    getEnv("SECONDARY_AUTH_CODE", ""),
		AddressName:          getEnv("ADDRESS_NAME", ""),
		AddressWait:          getEnvDuration("ADDRESS_WAIT", 15*time.Second),

		ProceedToCheckout: getEnvBool("PROCEED_TO_CHECKOUT", true),
		RelocateByLink:    getEnvBool("RELOCATE_BY_LINK", true),

		OutputFile:           getEnv("OUTPUT_FILE", "data/results.csv"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "menuscout:results"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAXLEN", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),
		MetricsAddr:  getEnv("METRICS_ADDR", ""),

		Environment: getEnv("MENUSCOUT_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the run cannot work with
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.StorefrontURL); err != nil {
		return errors.NewConfiguration("STOREFRONT_URL is not a valid URL", err)
	}
	if !strings.Contains(c.SearchURLTemplate, "{query}") {
		return errors.NewConfiguration("SEARCH_URL_TEMPLATE must contain {query}", nil)
	}
	if strings.TrimSpace(c.SearchTerm) == "" {
		return errors.NewConfiguration("SEARCH_TERM must not be empty", nil)
	}
	if c.MaxVendors < 1 {
		return errors.NewConfiguration(fmt.Sprintf("MAX_VENDORS must be at least 1, got %d", c.MaxVendors), nil)
	}
	if c.MaxItemsPerVendor < 1 {
		return errors.NewConfiguration(fmt.Sprintf("MAX_ITEMS_PER_VENDOR must be at least 1, got %d", c.MaxItemsPerVendor), nil)
	}
	if c.MinValidPrice <= 0 || c.MaxValidPrice <= c.MinValidPrice {
		return errors.NewConfiguration(fmt.Sprintf("price bounds must satisfy 0 < MIN_VALID_PRICE < MAX_VALID_PRICE, got [%v, %v]", c.MinValidPrice, c.MaxValidPrice), nil)
	}
	if c.Driver != DriverPlaywright && c.Driver != DriverStatic {
		return errors.NewConfiguration(fmt.Sprintf("BROWSER_DRIVER must be %q or %q, got %q", DriverPlaywright, DriverStatic, c.Driver), nil)
	}
	if c.NavigationTimeout <= 0 || c.SettleTimeout <= 0 || c.SelectorTimeout <= 0 {
		return errors.NewConfiguration("timeouts must be positive", nil)
	}
	if c.MaxRecoveryAttempts < 0 {
		return errors.NewConfiguration("MAX_RECOVERY_ATTEMPTS must not be negative", nil)
	}
	if c.NavigationRate <= 0 || c.NavigationBurst < 1 {
		return errors.NewConfiguration("NAVIGATION_RATE must be positive and NAVIGATION_BURST at least 1", nil)
	}
	if c.LoginRequired && (c.Email == "" || c.Password == "") {
		return errors.NewConfiguration("STOREFRONT_EMAIL and STOREFRONT_PASSWORD are required when LOGIN_REQUIRED is set", nil)
	}
	if c.OutputFile == "" {
		return errors.NewConfiguration("OUTPUT_FILE must not be empty", nil)
	}
	return nil
}

// SearchURL builds the listing URL for a search term
func (c *Config) SearchURL(term string) string {
	r := strings.NewReplacer(
		"{base}", c.StorefrontURL,
		"{query}", url.QueryEscape(strings.TrimSpace(term)),
	)
	return r.Replace(c.SearchURLTemplate)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
