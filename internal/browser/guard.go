package browser

import (
	"context"
	"fmt"
	"time"

	"sjsage522/menuscout/pkg/errors"
	"sjsage522/menuscout/services/cache"

	"golang.org/x/time/rate"
)

// Guard paces navigations and honours a storefront cooldown. Once the
// storefront answers with a rate-limit status the block key is written to
// the cache and every navigation fails until it expires.
type Guard struct {
	limiter  *rate.Limiter
	cache    cache.CacheService
	key      string
	cooldown time.Duration
}

// NewGuard creates a guard allowing perSecond navigations with the given
// burst. cacheSvc may be nil, which disables the cooldown.
func NewGuard(cacheSvc cache.CacheService, key string, cooldown time.Duration, perSecond float64, burst int) *Guard {
	return &Guard{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		cache:    cacheSvc,
		key:      key,
		cooldown: cooldown,
	}
}

// Before blocks until a navigation to url is allowed.
func (g *Guard) Before(ctx context.Context, url string) error {
	if g == nil {
		return nil
	}
	if g.cache != nil && g.key != "" {
		if _, err := g.cache.Get(g.key); err == nil {
			return errors.NewRateLimit(url, g.cooldown)
		}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigation pacing: %w", err)
	}
	return nil
}

// Block starts the cooldown.
func (g *Guard) Block(url string) {
	if g == nil || g.cache == nil || g.key == "" {
		return
	}
	g.cache.Set(g.key, []byte(url), g.cooldown)
}
