package functions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Function = (*ScoreAggregateFunction)(nil)

// ScoreAggregateType is the registered name of the score pooling function.
const ScoreAggregateType = "score.aggregate"

// Errors returned by score.aggregate.
var (
	// ErrNoScores is returned when the scores input is empty.
	ErrNoScores = errors.New("no scores provided for aggregation")

	// ErrBelowMinScore is returned when the aggregate falls below the
	// configured minimum.
	ErrBelowMinScore = errors.New("aggregate score below minimum threshold")

	// ErrTie is returned when several scores are equally good winners and
	// the tie breaker is "error".
	ErrTie = errors.New("multiple scores tied for winner")
)

// Pooling methods supported by score.aggregate.
const (
	PoolMean   = "mean"
	PoolMax    = "max"
	PoolMedian = "median"
)

// Tie breaking strategies supported by score.aggregate.
const (
	TieFirst = "first"
	TieError = "error"
)

// ScoreAggregateFunction pools a list of scores into one aggregate and
// picks the index of the winning score.
//
// With "mean" and "max" the winner is the highest score; with "median" it
// is the score closest to the median, which damps outliers.
//
// The function is stateless and thread-safe.
type ScoreAggregateFunction struct {
	config ScoreAggregateConfig
	info   domain.FunctionInfo
	tracer trace.Tracer
}

// ScoreAggregateConfig defines the configuration of score.aggregate.
type ScoreAggregateConfig struct {
	// Method selects the pooling statistic.
	Method string `yaml:"method" json:"method" validate:"required,oneof=mean max median"`

	// MinScore is the smallest acceptable aggregate. Lower aggregates fail
	// with ErrBelowMinScore.
	MinScore float64 `yaml:"min_score" json:"min_score" validate:"min=0.0,max=1.0"`

	// TieBreaker decides between equally good winners.
	TieBreaker string `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=first error"`
}

// SetDefaults selects mean pooling with deterministic tie breaking.
func (c *ScoreAggregateConfig) SetDefaults() {
	c.Method = PoolMean
	c.TieBreaker = TieFirst
}

// NewScoreAggregateFunction creates a score.aggregate instance.
func NewScoreAggregateFunction(_ context.Context, _ ports.Server, config ScoreAggregateConfig, _ ports.ProgressFunc) (ports.Function, error) {
	info, err := declareInfo(func(fi *domain.FunctionInfo) error {
		// Scores arrive from JSON and YAML as mixed integers and floats, so
		// the pin accepts any element and Apply checks they are numeric.
		if err := fi.AddInput("scores", domain.ArrayValueInfo(domain.AnyValueInfo())); err != nil {
			return err
		}
		if err := fi.AddOutput("aggregate", domain.FloatValueInfo()); err != nil {
			return err
		}
		return fi.AddOutput("winner", domain.IntegerValueInfo())
	})
	if err != nil {
		return nil, err
	}

	return &ScoreAggregateFunction{
		config: config,
		info:   info,
		tracer: otel.Tracer("score-aggregate-function"),
	}, nil
}

// RegisterScoreAggregate adds the score.aggregate type to a registry.
var RegisterScoreAggregate = application.RegisterFunctionType[ScoreAggregateConfig](
	ScoreAggregateType,
	"Pools scores with mean, max or median and selects the winning index",
	"Inputs: scores (array of numbers). Outputs: aggregate (float), winner (integer index). "+
		"Config: method (mean|max|median, default mean), min_score (default 0), tie_breaker (first|error, default first).",
	NewScoreAggregateFunction,
)

// Status reports the active configuration.
func (f *ScoreAggregateFunction) Status() any { return f.config }

// FunctionInfo returns the static contract.
func (f *ScoreAggregateFunction) FunctionInfo() domain.FunctionInfo { return f.info }

// Apply pools the scores input.
func (f *ScoreAggregateFunction) Apply(ctx context.Context, _ ports.Applier, input domain.Context) (domain.Output, error) {
	_, span := f.tracer.Start(ctx, "ScoreAggregateFunction.Apply",
		trace.WithAttributes(
			attribute.String("function.type", ScoreAggregateType),
			attribute.String("config.method", f.config.Method),
			attribute.Float64("config.min_score", f.config.MinScore),
		),
	)
	defer span.End()

	v, ok := input.Get("scores")
	if !ok {
		err := domain.NewInputError("scores", "", domain.ErrInputMissing)
		span.RecordError(err)
		return domain.Output{}, err
	}
	scores, err := numericScores(v.Payload())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Output{}, err
	}

	aggregate, winner, err := f.aggregate(scores)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Output{}, err
	}
	span.SetAttributes(
		attribute.Int("input.count", len(scores)),
		attribute.Float64("result.aggregate", aggregate),
		attribute.Int("result.winner", winner),
	)

	out := domain.NewOutput()
	if err := out.Set("aggregate", domain.NewValue(aggregate, v.Timestamp())); err != nil {
		return domain.Output{}, err
	}
	if err := out.Set("winner", domain.NewValue(winner, v.Timestamp())); err != nil {
		return domain.Output{}, err
	}
	return out, nil
}

// aggregate returns the pooled score and the winning index.
func (f *ScoreAggregateFunction) aggregate(scores []float64) (float64, int, error) {
	if len(scores) == 0 {
		return 0, 0, ErrNoScores
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return 0, 0, fmt.Errorf("invalid score at index %d: %f", i, s)
		}
	}

	var aggregate float64
	var ties []int
	switch f.config.Method {
	case PoolMax:
		ties = best(scores, func(s float64) float64 { return s })
		aggregate = scores[ties[0]]
	case PoolMedian:
		aggregate = median(scores)
		ties = best(scores, func(s float64) float64 { return -math.Abs(s - aggregate) })
	default:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		aggregate = sum / float64(len(scores))
		ties = best(scores, func(s float64) float64 { return s })
	}

	if aggregate < f.config.MinScore {
		return 0, 0, fmt.Errorf("%w: %s=%.3f, minimum=%.3f",
			ErrBelowMinScore, f.config.Method, aggregate, f.config.MinScore)
	}
	if len(ties) > 1 && f.config.TieBreaker == TieError {
		return 0, 0, fmt.Errorf("%w: indices %v", ErrTie, ties)
	}

	return aggregate, ties[0], nil
}

// best returns the indices of the scores ranking highest under rank, in
// ascending order.
func best(scores []float64, rank func(float64) float64) []int {
	top := math.Inf(-1)
	var indices []int
	for i, s := range scores {
		switch r := rank(s); {
		case r > top:
			top = r
			indices = []int{i}
		case r == top:
			indices = append(indices, i)
		}
	}
	return indices
}

// median returns the middle score, or the mean of the two middle scores
// for an even count. scores is left untouched.
func median(scores []float64) float64 {
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// numericScores converts an array payload of integers and floats into
// float64 scores.
func numericScores(payload any) ([]float64, error) {
	v := reflect.ValueOf(payload)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, domain.NewInputError("scores", "array<number>", domain.ErrTypeMismatch)
	}

	scores := make([]float64, v.Len())
	for i := range v.Len() {
		elem := reflect.ValueOf(v.Index(i).Interface())
		switch elem.Kind() {
		case reflect.Float32, reflect.Float64:
			scores[i] = elem.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			scores[i] = float64(elem.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			scores[i] = float64(elem.Uint())
		default:
			return nil, domain.NewInputError(fmt.Sprintf("scores[%d]", i), "number", domain.ErrTypeMismatch)
		}
	}
	return scores, nil
}
