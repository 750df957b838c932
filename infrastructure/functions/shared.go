// Package functions provides built-in function types that implement the
// ports.Function interface and the registrations that add them to a
// registry.
package functions

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// MaxStringLength is the maximum allowed length for any string input (10MB).
const MaxStringLength = 10 * 1024 * 1024

// Errors returned by the built-in functions.
var (
	// ErrInputTooLong is returned when a string input exceeds MaxStringLength.
	ErrInputTooLong = errors.New("input too long")
)

// foldCaser performs Unicode-aware case folding for case-insensitive
// comparisons.
var foldCaser = cases.Fold()

// Builtins returns the registrations of every built-in function type in a
// fixed order. Hosts pass the result to application.RegisterAll.
func Builtins() []application.Registration {
	return []application.Registration{
		RegisterHelloWorld,
		RegisterTextEquals,
		RegisterTextSimilarity,
		RegisterScoreAggregate,
	}
}

// now reads the host clock, falling back to the wall clock when the
// function was built without a server handle.
func now(server ports.Server) time.Time {
	if server == nil {
		return time.Now()
	}
	return server.Now()
}

// declareInfo builds a contract from a declaration function. Built-in
// contracts are static, so a declaration error is a programming mistake
// reported as a construction error.
func declareInfo(declare func(*domain.FunctionInfo) error) (domain.FunctionInfo, error) {
	info := domain.NewFunctionInfo()
	if err := declare(&info); err != nil {
		return domain.FunctionInfo{}, fmt.Errorf("failed to declare contract: %w", err)
	}
	return info, nil
}

// stringInput reads a string input the applier has already type-checked.
func stringInput(input domain.Context, pin string) (string, domain.Value, error) {
	v, ok := input.Get(pin)
	if !ok {
		return "", domain.Value{}, domain.NewInputError(pin, "", domain.ErrInputMissing)
	}
	s, ok := v.Payload().(string)
	if !ok {
		return "", domain.Value{}, domain.NewInputError(pin, string(domain.KindString), domain.ErrTypeMismatch)
	}
	if len(s) > MaxStringLength {
		return "", domain.Value{}, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInputTooLong, pin, len(s), MaxStringLength)
	}
	return s, v, nil
}
