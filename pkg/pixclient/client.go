package pixclient

import (
	"net/http"
)

type Client struct {
	cfg     Config
	http    *http.Client
	retry   RetryPolicy
	cache   *StatusCache
	limiter *QuotaLimiter
	breaker CircuitBreaker
}

func NewFromEnv() *Client {
	return New(LoadFromEnv())
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		retry: RetryPolicy{
			MaxRetries: cfg.RetryCount,
			BaseDelay:  cfg.RetryDelay,
		},
		cache:   NewStatusCache(cfg.CacheSize, cfg.CacheTTL),
		limiter: NewQuotaLimiter(cfg.RateLimit, cfg.RateBurst),
		breaker: NewCircuitBreaker(cfg),
	}
}

// WebhookSecret exposes the shared secret used to verify inbound callbacks.
func (c *Client) WebhookSecret() string {
	return c.cfg.WebhookSecret
}
