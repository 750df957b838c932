package domain

import "slices"

// Pin is a named, typed input or output slot of a function contract.
type Pin struct {
	// Name identifies the pin and is unique within its side.
	Name string

	// Info describes the payloads the pin carries.
	Info ValueInfo

	// Optional input pins may be left unbound at invocation time.
	// Output pins are never optional.
	Optional bool
}

// PinSet is an insertion-ordered, name-unique collection of pins.
// The zero value is an empty set ready for use.
type PinSet struct {
	side  Side
	pins  []Pin
	index map[string]int
}

func newPinSet(side Side) PinSet { return PinSet{side: side} }

// add appends pin, rejecting invalid declarations and repeated names.
// Copies of a PinSet share storage, so add clones before writing and a
// copy handed out by FunctionInfo can never alter the original.
func (ps *PinSet) add(pin Pin) error {
	if pin.Name == "" || pin.Info == nil {
		return NewPinError(ps.side, pin.Name, ErrInvalidPin)
	}
	if _, exists := ps.index[pin.Name]; exists {
		return NewDuplicateNameError(ps.side, pin.Name)
	}
	index := make(map[string]int, len(ps.index)+1)
	for k, v := range ps.index {
		index[k] = v
	}
	index[pin.Name] = len(ps.pins)
	ps.index = index
	ps.pins = append(slices.Clip(ps.pins), pin)
	return nil
}

// Len returns the number of pins.
func (ps PinSet) Len() int { return len(ps.pins) }

// Get returns the pin with the given name.
func (ps PinSet) Get(name string) (Pin, bool) {
	i, ok := ps.index[name]
	if !ok {
		return Pin{}, false
	}
	return ps.pins[i], true
}

// Has reports whether a pin with the given name exists.
func (ps PinSet) Has(name string) bool {
	_, ok := ps.index[name]
	return ok
}

// Pins returns the pins in declaration order. The slice is a copy.
func (ps PinSet) Pins() []Pin { return slices.Clone(ps.pins) }

// Names returns the pin names in declaration order.
func (ps PinSet) Names() []string {
	names := make([]string, len(ps.pins))
	for i, p := range ps.pins {
		names[i] = p.Name
	}
	return names
}

// Equal reports whether both sets hold the same pins in the same order.
func (ps PinSet) Equal(other PinSet) bool {
	return slices.EqualFunc(ps.pins, other.pins, func(a, b Pin) bool {
		return a.Name == b.Name && a.Optional == b.Optional && SameValueInfo(a.Info, b.Info)
	})
}

// FunctionInfo is a function's contract: the pins it reads and the pins it
// writes. It is built once while the owning instance is constructed and is
// read-only afterwards, so it can be shared freely across goroutines.
type FunctionInfo struct {
	input  PinSet
	output PinSet
}

// NewFunctionInfo creates an empty contract. A contract without inputs is
// valid and describes a constant function.
func NewFunctionInfo() FunctionInfo {
	return FunctionInfo{
		input:  newPinSet(SideInput),
		output: newPinSet(SideOutput),
	}
}

// AddInput declares a required input pin.
// It returns a *DuplicateNameError if name is already an input.
func (fi *FunctionInfo) AddInput(name string, info ValueInfo) error {
	fi.input.side = SideInput
	return fi.input.add(Pin{Name: name, Info: info})
}

// AddOptionalInput declares an input pin that may be left unbound.
func (fi *FunctionInfo) AddOptionalInput(name string, info ValueInfo) error {
	fi.input.side = SideInput
	return fi.input.add(Pin{Name: name, Info: info, Optional: true})
}

// AddOutput declares an output pin.
// It returns a *DuplicateNameError if name is already an output.
func (fi *FunctionInfo) AddOutput(name string, info ValueInfo) error {
	fi.output.side = SideOutput
	return fi.output.add(Pin{Name: name, Info: info})
}

// Inputs returns the input pin set.
func (fi FunctionInfo) Inputs() PinSet { return fi.input }

// Outputs returns the output pin set.
func (fi FunctionInfo) Outputs() PinSet { return fi.output }

// Equal reports whether two contracts declare the same pins.
func (fi FunctionInfo) Equal(other FunctionInfo) bool {
	return fi.input.Equal(other.input) && fi.output.Equal(other.output)
}
