package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the registry, the appliers and function instances.
// Structured errors below wrap one of these so callers can classify a
// failure with errors.Is.
var (
	// ErrConfiguration indicates that a function's configuration failed its
	// schema.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConstruction indicates a setup failure other than configuration.
	ErrConstruction = errors.New("construction failed")

	// ErrCancelled indicates that construction was cancelled through the
	// progress callback or the context.
	ErrCancelled = errors.New("construction cancelled")

	// ErrDuplicateName indicates that a pin or binding name is already taken.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDuplicateType indicates that a function type name is already
	// registered.
	ErrDuplicateType = errors.New("duplicate function type")

	// ErrUnknownType indicates that a function type name was never registered.
	ErrUnknownType = errors.New("unknown function type")

	// ErrUnknownPin indicates that a binding or output names a pin the
	// function does not declare.
	ErrUnknownPin = errors.New("unknown pin")

	// ErrInputMissing indicates that a required input pin has no value.
	ErrInputMissing = errors.New("input missing")

	// ErrTypeMismatch indicates that a payload does not match its pin's
	// type descriptor.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIncompleteOutput indicates that a function left declared output
	// pins unset.
	ErrIncompleteOutput = errors.New("incomplete output")

	// ErrInvalidPin indicates a pin declaration with an empty name or a
	// nil type descriptor.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrInvalidRegistration indicates a registration with an empty type
	// name or a nil factory.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// Side names which pin set of a contract an error refers to.
type Side string

// Pin set sides.
const (
	SideInput  Side = "input"
	SideOutput Side = "output"
)

// DuplicateNameError reports a name declared twice on one side of a
// contract or a binding.
type DuplicateNameError struct {
	// Side is the pin set holding the duplicate.
	Side Side

	// Name is the repeated name.
	Name string
}

// Error implements the error interface for DuplicateNameError.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate %s name %q", e.Side, e.Name)
}

// Unwrap returns ErrDuplicateName.
func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// NewDuplicateNameError creates a new DuplicateNameError.
func NewDuplicateNameError(side Side, name string) *DuplicateNameError {
	return &DuplicateNameError{Side: side, Name: name}
}

// TypeError represents a registry failure tied to a function type name.
type TypeError struct {
	// TypeName is the function type involved in the failed operation.
	TypeName string

	// Operation is the registry operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for TypeError.
func (e *TypeError) Error() string {
	return fmt.Sprintf("function type error: operation=%s, type=%s, err=%v", e.Operation, e.TypeName, e.Err)
}

// Unwrap returns the underlying error.
func (e *TypeError) Unwrap() error { return e.Err }

// NewTypeError creates a new TypeError with the given details.
func NewTypeError(typeName, operation string, err error) *TypeError {
	return &TypeError{
		TypeName:  typeName,
		Operation: operation,
		Err:       err,
	}
}

// ConfigurationError reports a configuration blob that does not satisfy
// the schema of the type being constructed.
type ConfigurationError struct {
	// TypeName is the function type whose schema was violated.
	TypeName string

	// Schema names the expected configuration type.
	Schema string

	// Err is the decoding or validation failure.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: type=%s, schema=%s, err=%v", e.TypeName, e.Schema, e.Err)
}

// Is matches ErrConfiguration in addition to the wrapped error.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(typeName, schema string, err error) *ConfigurationError {
	return &ConfigurationError{TypeName: typeName, Schema: schema, Err: err}
}

// ConstructionError reports a setup failure while building an instance.
type ConstructionError struct {
	// TypeName is the function type being constructed.
	TypeName string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface for ConstructionError.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction error: type=%s, err=%v", e.TypeName, e.Err)
}

// Is matches ErrConstruction in addition to the wrapped error.
func (e *ConstructionError) Is(target error) bool { return target == ErrConstruction }

// Unwrap returns the underlying error.
func (e *ConstructionError) Unwrap() error { return e.Err }

// NewConstructionError creates a new ConstructionError.
func NewConstructionError(typeName string, err error) *ConstructionError {
	return &ConstructionError{TypeName: typeName, Err: err}
}

// PinError reports a problem with a single pin of a contract, such as a
// binding that references a pin the function does not declare.
type PinError struct {
	// Side is the pin set the pin belongs to.
	Side Side

	// Pin is the offending pin name.
	Pin string

	// Err is ErrUnknownPin, ErrInvalidPin or ErrTypeMismatch.
	Err error
}

// Error implements the error interface for PinError.
func (e *PinError) Error() string {
	return fmt.Sprintf("pin error: side=%s, pin=%s, err=%v", e.Side, e.Pin, e.Err)
}

// Unwrap returns the underlying error.
func (e *PinError) Unwrap() error { return e.Err }

// NewPinError creates a new PinError.
func NewPinError(side Side, pin string, err error) *PinError {
	return &PinError{Side: side, Pin: pin, Err: err}
}

// InputError reports an invocation whose context does not satisfy the
// function's input pins.
type InputError struct {
	// Pin is the input pin that failed.
	Pin string

	// Expected is the pin's type descriptor, when relevant.
	Expected string

	// Err is ErrInputMissing or ErrTypeMismatch.
	Err error
}

// Error implements the error interface for InputError.
func (e *InputError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("input error: pin=%s, expected=%s, err=%v", e.Pin, e.Expected, e.Err)
	}
	return fmt.Sprintf("input error: pin=%s, err=%v", e.Pin, e.Err)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error { return e.Err }

// NewInputError creates a new InputError.
func NewInputError(pin, expected string, err error) *InputError {
	return &InputError{Pin: pin, Expected: expected, Err: err}
}

// IncompleteOutputError reports declared output pins a function left unset.
type IncompleteOutputError struct {
	// Missing lists the unset output pins in declaration order.
	Missing []string
}

// Error implements the error interface for IncompleteOutputError.
func (e *IncompleteOutputError) Error() string {
	return fmt.Sprintf("incomplete output: missing pins [%s]", strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrIncompleteOutput.
func (e *IncompleteOutputError) Unwrap() error { return ErrIncompleteOutput }

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
