package middleware

import (
	"context"
	"time"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

type meteredFunction struct {
	decorated
	typeName string
	metrics  ports.MetricsCollector
}

// Metrics returns middleware recording the latency and outcome of every
// invocation with collector.
func Metrics(collector ports.MetricsCollector) ports.FunctionMiddleware {
	return func(typeName string, next ports.Function) ports.Function {
		if collector == nil {
			return next
		}
		return &meteredFunction{
			decorated: decorated{next},
			typeName:  typeName,
			metrics:   collector,
		}
	}
}

func (m *meteredFunction) Apply(ctx context.Context, applier ports.Applier, input domain.Context) (domain.Output, error) {
	start := time.Now()
	out, err := m.Function.Apply(ctx, applier, input)

	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordLatency("apply", time.Since(start), map[string]string{"type": m.typeName})
	m.metrics.RecordCounter(MetricApplyTotal, 1, map[string]string{"type": m.typeName, "status": status})

	return out, err
}
