package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/ratelimit"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned when the outbound call budget for the
// partner API is spent and the response was not in cache.
type ErrBudgetExhausted struct {
	RetryAfter time.Duration
}

func (e ErrBudgetExhausted) Error() string {
	return fmt.Sprintf("partner call budget exhausted, retry after %s", e.RetryAfter)
}

// IsBudgetExhausted reports whether err is a budget exhaustion error.
func IsBudgetExhausted(err error) (ErrBudgetExhausted, bool) {
	var e ErrBudgetExhausted
	ok := errors.As(err, &e)
	return e, ok
}

// PartnerConfig tunes the partner proxy guards.
type PartnerConfig struct {
	Budget ratelimit.Config // fixed-window call budget, Limit <= 0 disables
	TTL    time.Duration    // cache entry lifetime, defaults to 15m
	RPS    float64          // upstream request smoothing, <= 0 disables
	Burst  int
}

// PartnerService proxies read-only calls to the partner API. Responses are
// cached; upstream calls pass a smoothing limiter and a fixed-window budget.
type PartnerService struct {
	client  ports.PartnerClient
	cache   ports.PartnerCache
	clock   ports.Clock
	limiter *rate.Limiter
	logger  zerolog.Logger

	budget ratelimit.Config
	ttl    time.Duration

	mu        sync.Mutex
	state     ratelimit.WindowState
	throttled int64
}

// NewPartnerService creates a new partner proxy service.
func NewPartnerService(
	client ports.PartnerClient,
	cache ports.PartnerCache,
	clock ports.Clock,
	cfg PartnerConfig,
	logger zerolog.Logger,
) *PartnerService {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Budget.Window <= 0 {
		cfg.Budget.Window = time.Minute
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &PartnerService{
		client:  client,
		cache:   cache,
		clock:   clock,
		limiter: limiter,
		logger:  logger,
		budget:  cfg.Budget,
		ttl:     cfg.TTL,
	}
}

// Fetch returns the partner API response for path, serving from cache when
// a fresh entry exists. cached reports whether the response came from cache.
func (s *PartnerService) Fetch(ctx context.Context, path string) (body []byte, cached bool, err error) {
	if body, ok := s.cache.Get(ctx, path); ok {
		return body, true, nil
	}

	if err := s.spend(); err != nil {
		return nil, false, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	body, err = s.client.Fetch(ctx, path)
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.Set(ctx, path, body, s.cacheTTL()); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("partner cache write failed")
	}

	return body, false, nil
}

// Reconfigure applies new budget, TTL, and smoothing settings. Enabling
// or disabling the smoothing limiter itself requires a restart.
func (s *PartnerService) Reconfigure(cfg PartnerConfig) {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Budget.Window <= 0 {
		cfg.Budget.Window = time.Minute
	}

	s.mu.Lock()
	s.budget = cfg.Budget
	s.ttl = cfg.TTL
	s.mu.Unlock()

	if s.limiter != nil && cfg.RPS > 0 {
		s.limiter.SetLimit(rate.Limit(cfg.RPS))
		if cfg.Burst > 0 {
			s.limiter.SetBurst(cfg.Burst)
		}
	}
}

func (s *PartnerService) cacheTTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

// spend consumes one call from the window budget.
func (s *PartnerService) spend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget.Limit <= 0 {
		return nil
	}

	now := s.clock.Now()
	result, state := ratelimit.Check(s.state, s.budget, now)
	s.state = state
	if !result.Allowed {
		s.throttled++
		return ErrBudgetExhausted{RetryAfter: ratelimit.RetryAfter(result, now)}
	}
	return nil
}

// Stats returns cache statistics plus the budget refusal count.
func (s *PartnerService) Stats(ctx context.Context) (ports.CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return ports.CacheStats{}, err
	}

	s.mu.Lock()
	stats.Throttled = s.throttled
	s.mu.Unlock()

	return stats, nil
}

// ClearCache drops every cached partner response.
func (s *PartnerService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Sweep removes expired cache entries and returns how many were dropped.
func (s *PartnerService) Sweep(ctx context.Context) (int, error) {
	return s.cache.Sweep(ctx, s.clock.Now())
}
