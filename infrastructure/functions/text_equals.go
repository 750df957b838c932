package functions

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Function = (*TextEqualsFunction)(nil)

// TextEqualsType is the registered name of the exact text comparison.
const TextEqualsType = "text.equals"

// TextEqualsFunction compares a text input with a reference input and
// reports whether they are equal after the configured normalization.
//
// Concurrency: TextEqualsFunction is stateless and safe for concurrent use.
type TextEqualsFunction struct {
	// config contains the validated configuration parameters.
	config TextEqualsConfig
	// info is the static contract: inputs text and reference, output equal.
	info domain.FunctionInfo
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// TextEqualsConfig controls string normalization before comparison.
type TextEqualsConfig struct {
	// CaseSensitive controls case sensitivity during string comparison.
	// When false, uses Unicode-aware case folding.
	// Default: false.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`

	// TrimWhitespace applies strings.TrimSpace before comparison.
	// Default: true.
	TrimWhitespace bool `yaml:"trim_whitespace" json:"trim_whitespace"`
}

// SetDefaults enables whitespace trimming unless the document overrides it.
func (c *TextEqualsConfig) SetDefaults() {
	c.TrimWhitespace = true
}

// NewTextEqualsFunction creates a text.equals instance with the given
// configuration.
func NewTextEqualsFunction(_ context.Context, _ ports.Server, config TextEqualsConfig, _ ports.ProgressFunc) (ports.Function, error) {
	info, err := declareInfo(func(fi *domain.FunctionInfo) error {
		if err := fi.AddInput("text", domain.StringValueInfo()); err != nil {
			return err
		}
		if err := fi.AddInput("reference", domain.StringValueInfo()); err != nil {
			return err
		}
		return fi.AddOutput("equal", domain.BoolValueInfo())
	})
	if err != nil {
		return nil, err
	}

	return &TextEqualsFunction{
		config: config,
		info:   info,
		tracer: otel.Tracer("text-equals-function"),
	}, nil
}

// RegisterTextEquals adds the text.equals type to a registry.
var RegisterTextEquals = application.RegisterFunctionType[TextEqualsConfig](
	TextEqualsType,
	"Reports whether two strings are equal after normalization",
	"Inputs: text (string), reference (string). Output: equal (bool). "+
		"Config: case_sensitive (default false), trim_whitespace (default true).",
	NewTextEqualsFunction,
)

// Status reports the active configuration.
func (f *TextEqualsFunction) Status() any { return f.config }

// FunctionInfo returns the static contract.
func (f *TextEqualsFunction) FunctionInfo() domain.FunctionInfo { return f.info }

// Apply compares the normalized inputs. The output carries the latest
// timestamp of the two inputs.
func (f *TextEqualsFunction) Apply(ctx context.Context, _ ports.Applier, input domain.Context) (domain.Output, error) {
	_, span := f.tracer.Start(ctx, "TextEqualsFunction.Apply",
		trace.WithAttributes(
			attribute.String("function.type", TextEqualsType),
			attribute.Bool("config.case_sensitive", f.config.CaseSensitive),
			attribute.Bool("config.trim_whitespace", f.config.TrimWhitespace),
		),
	)
	defer span.End()

	text, textVal, err := stringInput(input, "text")
	if err != nil {
		span.RecordError(err)
		return domain.Output{}, err
	}
	reference, refVal, err := stringInput(input, "reference")
	if err != nil {
		span.RecordError(err)
		return domain.Output{}, err
	}

	equal := f.prepareString(text) == f.prepareString(reference)
	span.SetAttributes(attribute.Bool("result.equal", equal))

	out := domain.NewOutput()
	if err := out.Set("equal", domain.NewValue(equal, domain.Latest(textVal, refVal))); err != nil {
		span.RecordError(err)
		return domain.Output{}, err
	}
	return out, nil
}

// prepareString applies whitespace trimming, then case folding.
func (f *TextEqualsFunction) prepareString(s string) string {
	if f.config.TrimWhitespace {
		s = strings.TrimSpace(s)
	}
	if !f.config.CaseSensitive {
		s = foldCaser.String(s)
	}
	return s
}
