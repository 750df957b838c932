// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-funcreg/internal/domain"
)

// Function is a configured, named unit of computation with a declared
// input/output contract. Instances are logically read-only once
// constructed: Apply may be called concurrently through different appliers
// and contexts, and an implementation that needs per-call mutable state
// must synchronize it itself.
type Function interface {
	// Status returns an introspectable payload describing the instance.
	// It must not mutate state and must not fail on a constructed instance.
	// Hosts surface the result verbatim, for example as an HTTP body.
	Status() any

	// FunctionInfo returns the contract computed at construction.
	// Repeated calls return equal contracts.
	FunctionInfo() domain.FunctionInfo

	// Apply evaluates the function for one invocation. input holds the
	// values bound to input pins, keyed by pin name. The returned Output
	// must set every declared output pin exactly once.
	//
	// The applier is the call-site binding the invocation came through;
	// most functions ignore it.
	//
	// Example:
	//
	//	out, err := fn.Apply(ctx, applier, domain.NewContext())
	//	if err != nil {
	//	    return fmt.Errorf("apply failed: %w", err)
	//	}
	Apply(ctx context.Context, applier Applier, input domain.Context) (domain.Output, error)
}

// Applier is a precomputed binding between a Function and one call site's
// argument layout. Appliers are immutable after binding and may be shared
// across goroutines.
type Applier interface {
	// Function returns the bound instance.
	Function() Function

	// Info returns the contract the binding was resolved against.
	Info() domain.FunctionInfo

	// InputPin returns the input pin a call-site argument is bound to.
	InputPin(argument string) (string, bool)

	// OutputColumn returns the call-site column an output pin is bound to.
	OutputColumn(pin string) (string, bool)
}

// Server is the handle to the hosting process given to factories. It is a
// collaborator owned by the host; the core only reads from it.
type Server interface {
	// Logger returns the host's structured logger.
	Logger() *zap.Logger

	// Now returns the current time as seen by the host. Functions use it
	// to timestamp values they produce.
	Now() time.Time
}

// ProgressFunc receives construction progress. Returning false asks the
// constructor to stop; it must then fail promptly with domain.ErrCancelled.
type ProgressFunc func(progress domain.Progress) bool

// Factory constructs a Function from the host handle, an opaque
// configuration document and a progress callback.
//
// Factories return a *domain.ConfigurationError when config violates the
// type's schema, a *domain.ConstructionError for other setup failures and
// an error wrapping domain.ErrCancelled when cancelled.
type Factory func(ctx context.Context, server Server, config yaml.Node, onProgress ProgressFunc) (Function, error)

// FunctionType is a registry entry: a factory plus the metadata the host
// exposes to users.
type FunctionType struct {
	// Name is the unique type name, for example "hello.world".
	Name string

	// Factory builds instances of the type.
	Factory Factory

	// ConfigSchema names the configuration type the factory expects.
	ConfigSchema string

	// Description is a one-line summary.
	Description string

	// Documentation is the long-form help text.
	Documentation string
}

// TypeDescriptor is the listing view of a FunctionType.
type TypeDescriptor struct {
	Name          string `json:"name"`
	ConfigSchema  string `json:"config_schema"`
	Description   string `json:"description"`
	Documentation string `json:"documentation"`
}

// Descriptor returns the listing view of ft.
func (ft FunctionType) Descriptor() TypeDescriptor {
	return TypeDescriptor{
		Name:          ft.Name,
		ConfigSchema:  ft.ConfigSchema,
		Description:   ft.Description,
		Documentation: ft.Documentation,
	}
}

// FunctionMiddleware decorates instances as the registry hands them out.
// typeName is the registered type the instance was built from.
type FunctionMiddleware func(typeName string, next Function) Function

// FunctionRegistry maps function type names to factories.
// Implementations must allow many concurrent Resolve and List callers.
type FunctionRegistry interface {
	// Register adds a function type. It fails with an error wrapping
	// domain.ErrDuplicateType when the name is taken, leaving the
	// registry unchanged.
	Register(ft FunctionType) error

	// Resolve builds an instance of typeName by calling its factory once.
	// It fails with an error wrapping domain.ErrUnknownType when the name
	// was never registered. Factory errors are propagated.
	Resolve(ctx context.Context, typeName string, server Server, config yaml.Node, onProgress ProgressFunc) (Function, error)

	// List returns the registered types as of the call, in registration
	// order. The sequence may be ranged over more than once.
	List() iter.Seq[TypeDescriptor]

	// Lookup returns the descriptor of a registered type.
	Lookup(typeName string) (TypeDescriptor, bool)
}
