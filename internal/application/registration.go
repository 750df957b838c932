package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// configValidator validates decoded configuration structs using their
// `validate` tags.
var configValidator = validator.New()

// Registration adds one or more function types to a registry. Hosts build
// an ordered list of registrations and apply it once at startup with
// RegisterAll, so the contents of the registry never depend on package
// initialization order.
type Registration func(registry ports.FunctionRegistry) error

// RegisterAll applies regs in order and stops at the first failure.
func RegisterAll(registry ports.FunctionRegistry, regs ...Registration) error {
	for i, reg := range regs {
		if reg == nil {
			return fmt.Errorf("registration %d is nil", i)
		}
		if err := reg(registry); err != nil {
			return fmt.Errorf("registration %d failed: %w", i, err)
		}
	}
	return nil
}

// Constructor builds a Function from an already decoded and validated
// configuration of type C.
type Constructor[C any] func(ctx context.Context, server ports.Server, config C, onProgress ports.ProgressFunc) (ports.Function, error)

// FunctionTypeOf adapts a typed constructor into a ports.FunctionType.
// The configuration document is decoded into C; struct configurations are
// then checked against their `validate` tags. Decoding or validation
// failures become a *domain.ConfigurationError. Constructor errors that do
// not already carry a kind are wrapped in a *domain.ConstructionError.
//
// Example:
//
//	ft := FunctionTypeOf[int]("hello.world", "Says hello", "", newHello)
//	err := registry.Register(ft)
func FunctionTypeOf[C any](typeName, description, documentation string, ctor Constructor[C]) ports.FunctionType {
	schema := schemaName[C]()

	factory := func(ctx context.Context, server ports.Server, node yaml.Node, onProgress ports.ProgressFunc) (ports.Function, error) {
		config, err := DecodeConfig[C](node)
		if err != nil {
			return nil, domain.NewConfigurationError(typeName, schema, err)
		}

		fn, err := ctor(ctx, server, config, onProgress)
		if err != nil {
			if errors.Is(err, domain.ErrConfiguration) ||
				errors.Is(err, domain.ErrConstruction) ||
				errors.Is(err, domain.ErrCancelled) {
				return nil, err
			}
			return nil, domain.NewConstructionError(typeName, err)
		}
		return fn, nil
	}

	return ports.FunctionType{
		Name:          typeName,
		Factory:       factory,
		ConfigSchema:  schema,
		Description:   description,
		Documentation: documentation,
	}
}

// RegisterFunctionType returns a Registration adding a typed function type.
func RegisterFunctionType[C any](typeName, description, documentation string, ctor Constructor[C]) Registration {
	return func(registry ports.FunctionRegistry) error {
		if ctor == nil {
			return domain.NewTypeError(typeName, "register", fmt.Errorf("%w: constructor cannot be nil", domain.ErrInvalidRegistration))
		}
		return registry.Register(FunctionTypeOf(typeName, description, documentation, ctor))
	}
}

// ConfigDefaulter is implemented by configuration types whose zero value is
// not a sensible default. SetDefaults runs before the document is decoded,
// so keys absent from the document keep their default.
type ConfigDefaulter interface {
	SetDefaults()
}

// DecodeConfig decodes a configuration document into C. An empty document
// yields the default value of C, which is then validated like any other.
func DecodeConfig[C any](node yaml.Node) (C, error) {
	var config C
	if d, ok := any(&config).(ConfigDefaulter); ok {
		d.SetDefaults()
	}

	if !isEmptyNode(node) {
		if err := node.Decode(&config); err != nil {
			return config, fmt.Errorf("failed to decode configuration: %w", err)
		}
	}

	if isStruct(reflect.ValueOf(&config).Elem()) {
		if err := configValidator.Struct(config); err != nil {
			return config, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return config, nil
}

// isEmptyNode reports whether node carries no configuration at all.
func isEmptyNode(node yaml.Node) bool {
	if node.Kind == 0 {
		return true
	}
	if node.Kind == yaml.DocumentNode {
		return len(node.Content) == 0 || (len(node.Content) == 1 && isEmptyNode(*node.Content[0]))
	}
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// isStruct reports whether v holds a struct or a non-nil pointer to one.
func isStruct(v reflect.Value) bool {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Struct
}

// schemaName returns the Go type name of C for listings.
func schemaName[C any]() string {
	t := reflect.TypeFor[C]()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
