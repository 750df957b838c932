package application

import (
	"gopkg.in/yaml.v3"
)

// CatalogConfig declares the function instances a host makes available.
// It is the primary configuration entry point: each entry names a
// registered function type and carries the configuration document handed
// to that type's factory.
type CatalogConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Functions lists the instances to construct, in declaration order.
	Functions []FunctionConfig `yaml:"functions" validate:"required,min=1,dive"`
	// Calls optionally declares call sites the host binds at load time.
	Calls []CallConfig `yaml:"calls" validate:"dive"`
}

// FunctionConfig declares one function instance.
type FunctionConfig struct {
	// Name is the instance name, unique within the catalog.
	Name string `yaml:"name" validate:"required,min=1,max=100,instancename"`
	// Type is the registered function type to instantiate.
	Type string `yaml:"type" validate:"required,typename"`
	// Description is free-form text shown next to the instance.
	Description string `yaml:"description" validate:"max=1000"`
	// Config is the opaque configuration document passed to the factory.
	// Its schema is owned by the function type.
	Config yaml.Node `yaml:"config,omitempty"`
}

// CallConfig declares a call site: which instance it invokes and how its
// arguments and result columns map onto the instance's pins.
type CallConfig struct {
	// ID identifies the call site for applier caching.
	ID string `yaml:"id" validate:"required,min=1,max=100,instancename"`
	// Function is the instance name this call site invokes.
	Function string `yaml:"function" validate:"required"`
	// Inputs maps call-site argument names to input pin names.
	// When omitted every input pin is bound to an argument of the same name.
	Inputs map[string]string `yaml:"inputs" validate:"omitempty,dive,keys,pinname,endkeys,pinname"`
	// Outputs maps output pin names to call-site column names.
	// When omitted every output pin writes a column of the same name.
	Outputs map[string]string `yaml:"outputs" validate:"omitempty,dive,keys,pinname,endkeys,pinname"`
}
