package middleware

import (
	"context"
	"time"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

type timeoutFunction struct {
	decorated
	timeout time.Duration
}

// Timeout returns middleware that bounds every invocation with a deadline.
// The function sees the deadline through its context; one that ignores the
// context is not interrupted. A non-positive timeout disables the
// middleware.
func Timeout(timeout time.Duration) ports.FunctionMiddleware {
	return func(_ string, next ports.Function) ports.Function {
		if timeout <= 0 {
			return next
		}
		return &timeoutFunction{decorated: decorated{next}, timeout: timeout}
	}
}

func (t *timeoutFunction) Apply(ctx context.Context, applier ports.Applier, input domain.Context) (domain.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Function.Apply(ctx, applier, input)
}
