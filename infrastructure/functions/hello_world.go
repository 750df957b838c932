package functions

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Function = (*HelloWorldFunction)(nil)

// Registry metadata for the hello.world type.
const (
	HelloWorldType          = "hello.world"
	HelloWorldDescription   = `Sample function that always returns hello = "world"`
	HelloWorldDocumentation = "No documentation available"

	// HelloWorldStatus is the constant status of every hello.world instance.
	HelloWorldStatus = "A-OK"
)

// HelloWorldFunction is the smallest useful function: no inputs, one string
// output named "hello" that is always "world", stamped with the time of the
// call. It is stateless and safe for concurrent use.
type HelloWorldFunction struct {
	server ports.Server
	info   domain.FunctionInfo
	tracer trace.Tracer
}

// NewHelloWorldFunction builds a hello.world instance. The integer
// configuration is accepted for compatibility and ignored. Construction is
// instantaneous, so progress is never reported.
func NewHelloWorldFunction(_ context.Context, server ports.Server, _ int, _ ports.ProgressFunc) (ports.Function, error) {
	info, err := declareInfo(func(fi *domain.FunctionInfo) error {
		return fi.AddOutput("hello", domain.StringValueInfo())
	})
	if err != nil {
		return nil, err
	}

	return &HelloWorldFunction{
		server: server,
		info:   info,
		tracer: otel.Tracer("hello-world-function"),
	}, nil
}

// RegisterHelloWorld adds the hello.world type to a registry.
var RegisterHelloWorld = application.RegisterFunctionType[int](
	HelloWorldType,
	HelloWorldDescription,
	HelloWorldDocumentation,
	NewHelloWorldFunction,
)

// Status always reports "A-OK".
func (h *HelloWorldFunction) Status() any { return HelloWorldStatus }

// FunctionInfo declares a single string output pin named "hello".
func (h *HelloWorldFunction) FunctionInfo() domain.FunctionInfo { return h.info }

// Apply returns {"hello": "world"} as of now. Neither the applier nor the
// input is read.
func (h *HelloWorldFunction) Apply(ctx context.Context, _ ports.Applier, _ domain.Context) (domain.Output, error) {
	_, span := h.tracer.Start(ctx, "HelloWorldFunction.Apply",
		trace.WithAttributes(attribute.String("function.type", HelloWorldType)),
	)
	defer span.End()

	out := domain.NewOutput()
	if err := out.Set("hello", domain.NewValue("world", now(h.server))); err != nil {
		span.RecordError(err)
		return domain.Output{}, fmt.Errorf("failed to set hello: %w", err)
	}
	return out, nil
}
