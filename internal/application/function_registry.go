package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.FunctionRegistry = (*DefaultFunctionRegistry)(nil)

// DefaultFunctionRegistry implements the FunctionRegistry interface,
// mapping function type names to the factories that build them.
// Registration is expected at startup and takes an exclusive lock;
// Resolve, List and Lookup only take the read lock and never hold it while
// a factory runs.
type DefaultFunctionRegistry struct {
	// types maps type names to their registry entries.
	types map[string]ports.FunctionType
	// order records registration order for List.
	order []string
	// middleware decorates every resolved instance, outermost first.
	middleware []ports.FunctionMiddleware
	// mu protects types, order and middleware.
	mu sync.RWMutex
	// logger records registrations and resolutions.
	logger *zap.Logger
}

// RegistryOption configures a DefaultFunctionRegistry.
type RegistryOption func(*DefaultFunctionRegistry)

// WithRegistryLogger sets the logger used by the registry.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *DefaultFunctionRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMiddleware adds middleware applied to every resolved instance.
func WithMiddleware(mw ...ports.FunctionMiddleware) RegistryOption {
	return func(r *DefaultFunctionRegistry) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewDefaultFunctionRegistry creates an empty registry. Types are added by
// the host's startup routine, typically through RegisterAll.
func NewDefaultFunctionRegistry(opts ...RegistryOption) *DefaultFunctionRegistry {
	r := &DefaultFunctionRegistry{
		types:  make(map[string]ports.FunctionType),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a function type to the registry.
// It returns a *domain.TypeError wrapping domain.ErrDuplicateType when the
// name is already registered and domain.ErrInvalidRegistration when the
// name is empty or the factory is nil. A failed registration leaves the
// registry unchanged.
func (r *DefaultFunctionRegistry) Register(ft ports.FunctionType) error {
	if ft.Name == "" {
		return domain.NewTypeError(ft.Name, "register", fmt.Errorf("%w: type name cannot be empty", domain.ErrInvalidRegistration))
	}
	if ft.Factory == nil {
		return domain.NewTypeError(ft.Name, "register", fmt.Errorf("%w: factory function cannot be nil", domain.ErrInvalidRegistration))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[ft.Name]; exists {
		r.logger.Error("duplicate function type registration", zap.String("type", ft.Name))
		return domain.NewTypeError(ft.Name, "register", domain.ErrDuplicateType)
	}

	r.types[ft.Name] = ft
	r.order = append(r.order, ft.Name)

	r.logger.Info("function type registered",
		zap.String("type", ft.Name),
		zap.String("config_schema", ft.ConfigSchema))
	return nil
}

// Use appends middleware applied to instances resolved from now on.
func (r *DefaultFunctionRegistry) Use(mw ...ports.FunctionMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Resolve builds a new instance of typeName by calling its factory exactly
// once. A nil onProgress never cancels. Cancellation through onProgress
// returning false or through ctx surfaces as an error wrapping
// domain.ErrCancelled even if the factory ignores it. On failure no
// instance is returned.
func (r *DefaultFunctionRegistry) Resolve(
	ctx context.Context,
	typeName string,
	server ports.Server,
	config yaml.Node,
	onProgress ports.ProgressFunc,
) (ports.Function, error) {
	r.mu.RLock()
	ft, exists := r.types[typeName]
	middleware := slices.Clone(r.middleware)
	r.mu.RUnlock()

	if !exists {
		return nil, domain.NewTypeError(typeName, "resolve", domain.ErrUnknownType)
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewTypeError(typeName, "resolve", errors.Join(domain.ErrCancelled, err))
	}

	gate := newProgressGate(ctx, onProgress)
	start := time.Now()

	fn, err := ft.Factory(ctx, server, config, gate.report)
	if gate.cancelled() || ctx.Err() != nil {
		// A cancelled construction reports ErrCancelled whatever the
		// factory returned, and nothing it built is handed out.
		switch {
		case err == nil:
			err = domain.ErrCancelled
		case !errors.Is(err, domain.ErrCancelled):
			err = errors.Join(domain.ErrCancelled, err)
		}
	}
	if err == nil && fn == nil {
		err = domain.NewConstructionError(typeName, errors.New("factory returned no instance"))
	}
	if err != nil {
		closeInstance(fn)
		r.logger.Warn("function resolution failed",
			zap.String("type", typeName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, domain.NewTypeError(typeName, "resolve", err)
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		fn = middleware[i](typeName, fn)
	}

	r.logger.Debug("function resolved",
		zap.String("type", typeName),
		zap.Duration("elapsed", time.Since(start)))
	return fn, nil
}

// closeInstance releases an instance that will not be handed out.
func closeInstance(fn ports.Function) {
	if c, ok := fn.(io.Closer); ok {
		_ = c.Close()
	}
}

// List returns a snapshot of the registered types in registration order.
// Types registered after List returns are not part of the sequence.
func (r *DefaultFunctionRegistry) List() iter.Seq[ports.TypeDescriptor] {
	r.mu.RLock()
	snapshot := make([]ports.TypeDescriptor, 0, len(r.order))
	for _, name := range r.order {
		snapshot = append(snapshot, r.types[name].Descriptor())
	}
	r.mu.RUnlock()

	return func(yield func(ports.TypeDescriptor) bool) {
		for _, d := range snapshot {
			if !yield(d) {
				return
			}
		}
	}
}

// Lookup returns the descriptor of a registered type.
func (r *DefaultFunctionRegistry) Lookup(typeName string) (ports.TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ft, ok := r.types[typeName]
	if !ok {
		return ports.TypeDescriptor{}, false
	}
	return ft.Descriptor(), true
}

// GetSupportedTypes returns the registered type names in registration order.
func (r *DefaultFunctionRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// progressGate forwards progress to the caller's callback and remembers a
// cancellation request so Resolve can enforce it.
type progressGate struct {
	ctx        context.Context
	onProgress ports.ProgressFunc
	mu         sync.Mutex
	stopped    bool
}

func newProgressGate(ctx context.Context, onProgress ports.ProgressFunc) *progressGate {
	return &progressGate{ctx: ctx, onProgress: onProgress}
}

func (g *progressGate) report(p domain.Progress) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return false
	}
	if g.ctx.Err() != nil {
		g.stopped = true
		return false
	}
	if g.onProgress != nil && !g.onProgress(p) {
		g.stopped = true
		return false
	}
	return true
}

func (g *progressGate) cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}
