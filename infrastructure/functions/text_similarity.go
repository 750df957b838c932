package functions

import (
	"context"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Function = (*TextSimilarityFunction)(nil)

// TextSimilarityType is the registered name of the fuzzy text comparison.
const TextSimilarityType = "text.similarity"

// TextSimilarityFunction scores how close a text input is to a reference
// using normalized Levenshtein distance. It produces a score in [0, 1] and
// a match flag that is set when the score reaches the configured threshold.
//
// The function is stateless and thread-safe.
type TextSimilarityFunction struct {
	config TextSimilarityConfig
	info   domain.FunctionInfo
	tracer trace.Tracer
}

// TextSimilarityConfig defines the configuration of text.similarity.
type TextSimilarityConfig struct {
	// Algorithm specifies the fuzzy matching algorithm to use.
	// Currently only "levenshtein" is supported.
	Algorithm string `yaml:"algorithm" json:"algorithm" validate:"required,oneof=levenshtein"`

	// Threshold is the minimum similarity (0.0-1.0) reported as a match.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"min=0.0,max=1.0"`

	// CaseSensitive determines whether string comparison is case-sensitive.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`
}

// SetDefaults selects levenshtein with a 0.8 threshold.
func (c *TextSimilarityConfig) SetDefaults() {
	c.Algorithm = "levenshtein"
	c.Threshold = 0.8
}

// NewTextSimilarityFunction creates a text.similarity instance.
func NewTextSimilarityFunction(_ context.Context, _ ports.Server, config TextSimilarityConfig, _ ports.ProgressFunc) (ports.Function, error) {
	info, err := declareInfo(func(fi *domain.FunctionInfo) error {
		if err := fi.AddInput("text", domain.StringValueInfo()); err != nil {
			return err
		}
		if err := fi.AddInput("reference", domain.StringValueInfo()); err != nil {
			return err
		}
		if err := fi.AddOutput("score", domain.FloatValueInfo()); err != nil {
			return err
		}
		return fi.AddOutput("match", domain.BoolValueInfo())
	})
	if err != nil {
		return nil, err
	}

	return &TextSimilarityFunction{
		config: config,
		info:   info,
		tracer: otel.Tracer("text-similarity-function"),
	}, nil
}

// RegisterTextSimilarity adds the text.similarity type to a registry.
var RegisterTextSimilarity = application.RegisterFunctionType[TextSimilarityConfig](
	TextSimilarityType,
	"Scores string similarity with normalized Levenshtein distance",
	"Inputs: text (string), reference (string). Outputs: score (float, 0..1), match (bool). "+
		"Config: algorithm (levenshtein), threshold (default 0.8), case_sensitive (default false).",
	NewTextSimilarityFunction,
)

// Status reports the active configuration.
func (f *TextSimilarityFunction) Status() any { return f.config }

// FunctionInfo returns the static contract.
func (f *TextSimilarityFunction) FunctionInfo() domain.FunctionInfo { return f.info }

// Apply computes the similarity of text to reference.
func (f *TextSimilarityFunction) Apply(ctx context.Context, _ ports.Applier, input domain.Context) (domain.Output, error) {
	_, span := f.tracer.Start(ctx, "TextSimilarityFunction.Apply",
		trace.WithAttributes(
			attribute.String("function.type", TextSimilarityType),
			attribute.String("config.algorithm", f.config.Algorithm),
			attribute.Float64("config.threshold", f.config.Threshold),
			attribute.Bool("config.case_sensitive", f.config.CaseSensitive),
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

	score := similarity(f.prepareString(text), f.prepareString(reference))
	match := score >= f.config.Threshold
	span.SetAttributes(
		attribute.Float64("result.score", score),
		attribute.Bool("result.match", match),
	)

	ts := domain.Latest(textVal, refVal)
	out := domain.NewOutput()
	if err := out.Set("score", domain.NewValue(score, ts)); err != nil {
		return domain.Output{}, err
	}
	if err := out.Set("match", domain.NewValue(match, ts)); err != nil {
		return domain.Output{}, err
	}
	return out, nil
}

func (f *TextSimilarityFunction) prepareString(s string) string {
	if !f.config.CaseSensitive {
		return foldCaser.String(s)
	}
	return s
}

// similarity returns 1 - distance/maxRunes, so identical strings score 1.0
// and two empty strings are identical.
func similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(s1, s2)

	// Levenshtein operates on runes, so the bound must too.
	maxLen := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))
	if maxLen == 0 {
		return 1.0
	}

	return max(0, 1.0-float64(distance)/float64(maxLen))
}
