package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
)

// rateLimited throttles calls to a wrapped provider.
type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that it is called at most rps times per second.
// A non-positive rps returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Complete(ctx context.Context, prompt, system string) (string, error) {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &Error{Provider: r.ID().String(), Err: fmt.Errorf("rate limit wait: %w", err)}
	}
	metrics.ProviderThrottleSeconds.WithLabelValues(r.ID().String()).Observe(time.Since(start).Seconds())
	return r.Provider.Complete(ctx, prompt, system)
}
