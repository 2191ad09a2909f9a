package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"sjsage522/menuscout/config"
	"sjsage522/menuscout/internal/browser"
	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/services/cache"
	"sjsage522/menuscout/services/publisher"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Browser   browser.Browser
	Metrics   *crawl.Metrics

	metricsServer *http.Server
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	log := logger.ForWorker()
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing browser failed")
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing publishers failed")
		}
	}
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.metricsServer.Shutdown(ctx)
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Metrics: crawl.NewMetrics()}
	log := logger.ForWorker()

	// Cooldown store: memcache when reachable, in-process otherwise
	services.Cache = cache.NewMemoryCache()
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-memory cooldown")
		} else {
			services.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	// Publishers
	sinks := publisher.MultiPublisher{publisher.NewCSVPublisher(cfg.OutputFile)}
	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := rp.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, results go to the CSV file only")
			rp.Close()
		} else {
			sinks = append(sinks, rp)
			log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Str("stream", cfg.RedisStream).Msg("Connected to Redis")
		}
	}
	services.Publisher = sinks

	guard := browser.NewGuard(services.Cache, cooldownKey(cfg.StorefrontURL), cfg.Cooldown, cfg.NavigationRate, cfg.NavigationBurst)

	b, err := newBrowser(cfg, guard)
	if err != nil {
		services.Cleanup()
		return nil, err
	}
	services.Browser = b

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(services.Metrics.Registry, promhttp.HandlerOpts{}))
		services.metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := services.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server stopped")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
	}

	return services, nil
}

func newBrowser(cfg *config.Config, guard *browser.Guard) (browser.Browser, error) {
	if cfg.Driver == config.DriverStatic {
		var fetcher browser.Fetcher = &browser.HTTPFetcher{Client: &http.Client{Timeout: cfg.NavigationTimeout}}
		if cfg.ChromeDBAddr != "" {
			fetcher = browser.NewChromeFetcher(cfg.ChromeDBAddr, cfg.NavigationTimeout, fetcher)
		}
		return browser.NewStatic(browser.StaticOptions{Fetcher: fetcher, Guard: guard})
	}

	return browser.NewPlaywright(browser.PlaywrightOptions{
		Headless:      cfg.Headless,
		SlowMo:        cfg.SlowMo,
		ActionTimeout: cfg.SettleTimeout,
		Guard:         guard,
	})
}

func cooldownKey(storefront string) string {
	host := storefront
	if u, err := url.Parse(storefront); err == nil && u.Host != "" {
		host = u.Host
	}
	return "menuscout:cooldown:" + host
}
