package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

type tracedFunction struct {
	decorated
	typeName string
	tracer   trace.Tracer
}

// Tracing returns middleware that wraps every invocation in an
// OpenTelemetry span named "Function.Apply". The span records the input
// and output sizes and is marked as failed when the invocation fails.
// A nil tracer uses the global provider.
func Tracing(tracer trace.Tracer) ports.FunctionMiddleware {
	if tracer == nil {
		tracer = otel.Tracer("function-middleware")
	}
	return func(typeName string, next ports.Function) ports.Function {
		return &tracedFunction{
			decorated: decorated{next},
			typeName:  typeName,
			tracer:    tracer,
		}
	}
}

func (t *tracedFunction) Apply(ctx context.Context, applier ports.Applier, input domain.Context) (domain.Output, error) {
	ctx, span := t.tracer.Start(ctx, "Function.Apply",
		trace.WithAttributes(
			attribute.String("function.type", t.typeName),
			attribute.Int("function.inputs", input.Len()),
		),
	)
	defer span.End()

	out, err := t.Function.Apply(ctx, applier, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}

	span.SetAttributes(attribute.Int("function.outputs", out.Len()))
	span.SetStatus(codes.Ok, "")
	return out, nil
}
