// Package middleware provides cross-cutting decorators for function
// instances. Each constructor returns a ports.FunctionMiddleware that the
// registry applies to every instance it resolves.
package middleware

import (
	"io"

	"github.com/ahrav/go-funcreg/internal/ports"
)

// decorated forwards Status and FunctionInfo to the wrapped instance so a
// decorator only overrides Apply. Close is forwarded when the wrapped
// instance holds resources.
type decorated struct {
	ports.Function
}

// Close releases the wrapped instance's resources, if any.
func (d decorated) Close() error {
	if c, ok := d.Function.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Chain composes middleware so that the first one is outermost.
func Chain(mw ...ports.FunctionMiddleware) ports.FunctionMiddleware {
	return func(typeName string, next ports.Function) ports.Function {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](typeName, next)
		}
		return next
	}
}
