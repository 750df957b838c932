package middleware

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

type rateLimitedFunction struct {
	decorated
	limiter *rate.Limiter
}

// RateLimit returns middleware that paces invocations with a token bucket.
// Each function type gets its own bucket of limit invocations per second
// with the given burst, shared by all instances of that type. Apply blocks
// until a token is available or ctx is done.
func RateLimit(limit rate.Limit, burst int) ports.FunctionMiddleware {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	return func(typeName string, next ports.Function) ports.Function {
		mu.Lock()
		limiter, ok := limiters[typeName]
		if !ok {
			limiter = rate.NewLimiter(limit, burst)
			limiters[typeName] = limiter
		}
		mu.Unlock()

		return &rateLimitedFunction{
			decorated: decorated{next},
			limiter:   limiter,
		}
	}
}

func (r *rateLimitedFunction) Apply(ctx context.Context, applier ports.Applier, input domain.Context) (domain.Output, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Output{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.Function.Apply(ctx, applier, input)
}
