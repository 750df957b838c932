package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Context is the per-invocation set of bound input values keyed by name.
// It uses copy-on-write semantics: With returns a new Context and leaves
// the receiver untouched, so one Context can be shared by concurrent
// invocations.
type Context struct {
	// values is unexported to keep the immutability guarantee.
	values map[string]Value
}

// NewContext creates an empty Context.
func NewContext() Context {
	return Context{values: make(map[string]Value)}
}

// ContextOf creates a Context holding a copy of values.
//
// Example:
//
//	ctx := ContextOf(map[string]Value{
//	    "text": NewValue("Hello", now),
//	})
func ContextOf(values map[string]Value) Context {
	if values == nil {
		return NewContext()
	}
	return Context{values: maps.Clone(values)}
}

// Get returns the value bound to name.
func (c Context) Get(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// With returns a new Context with name bound to v.
func (c Context) With(name string, v Value) Context {
	values := maps.Clone(c.values)
	if values == nil {
		values = make(map[string]Value, 1)
	}
	values[name] = v
	return Context{values: values}
}

// Len returns the number of bound values.
func (c Context) Len() int { return len(c.values) }

// Names returns the bound names in sorted order.
func (c Context) Names() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// String returns a string representation of the Context for debugging.
func (c Context) String() string {
	return fmt.Sprintf("Context%v", c.values)
}

// Output is the per-invocation mapping from output pin name to the value a
// function produced. Each name may be set once; a second Set is an error
// because a well-formed output populates every declared pin exactly once.
type Output struct {
	values map[string]Value
}

// NewOutput creates an empty Output.
func NewOutput() Output {
	return Output{values: make(map[string]Value)}
}

// Set records v under name. It returns a *DuplicateNameError if name was
// already set.
func (o *Output) Set(name string, v Value) error {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[name]; exists {
		return NewDuplicateNameError(SideOutput, name)
	}
	o.values[name] = v
	return nil
}

// Get returns the value produced for name.
func (o Output) Get(name string) (Value, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Len returns the number of produced values.
func (o Output) Len() int { return len(o.values) }

// Names returns the produced names in sorted order.
func (o Output) Names() []string {
	return slices.Sorted(maps.Keys(o.values))
}

// Values returns a copy of the produced values keyed by name.
func (o Output) Values() map[string]Value { return maps.Clone(o.values) }

// String returns a string representation of the Output for debugging.
func (o Output) String() string {
	return fmt.Sprintf("Output%v", o.values)
}

// Progress is the payload a constructor reports through its progress
// callback while it initializes.
type Progress struct {
	// Stage names the current step of initialization.
	Stage string `json:"stage"`

	// Percent is the estimated completion in [0, 100].
	Percent float64 `json:"percent"`

	// Detail carries implementation-defined information.
	Detail any `json:"detail,omitempty"`
}
