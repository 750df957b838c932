package application

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var _ ports.Applier = (*FunctionApplier)(nil)

// FunctionApplier binds a function instance to one call site. Binding
// resolves, once, which call-site argument feeds which input pin and which
// column receives each output pin; Apply then only performs map lookups.
// A FunctionApplier is immutable and safe for concurrent use.
type FunctionApplier struct {
	// fn is the bound instance. It is shared, not owned.
	fn ports.Function
	// info is the contract the binding was resolved against.
	info domain.FunctionInfo
	// argToPin maps call-site argument names to input pin names.
	argToPin map[string]string
	// pinToColumn maps output pin names to call-site column names.
	pinToColumn map[string]string
}

// Bind resolves a call site's argument layout against fn's contract.
//
// inputs maps call-site argument names to input pin names and outputs maps
// output pin names to call-site column names. A nil map binds every
// declared pin of that side to itself.
//
// Bind returns a *domain.PinError wrapping domain.ErrUnknownPin when a
// binding names an undeclared pin, and a *domain.DuplicateNameError when two
// arguments feed the same pin or two pins write the same column.
func Bind(fn ports.Function, inputs, outputs map[string]string) (*FunctionApplier, error) {
	if fn == nil {
		return nil, errors.New("cannot bind a nil function")
	}

	info := fn.FunctionInfo()

	argToPin, err := resolveInputs(info.Inputs(), inputs)
	if err != nil {
		return nil, err
	}
	pinToColumn, err := resolveOutputs(info.Outputs(), outputs)
	if err != nil {
		return nil, err
	}

	return &FunctionApplier{
		fn:          fn,
		info:        info,
		argToPin:    argToPin,
		pinToColumn: pinToColumn,
	}, nil
}

func resolveInputs(pins domain.PinSet, bindings map[string]string) (map[string]string, error) {
	if bindings == nil {
		identity := make(map[string]string, pins.Len())
		for _, name := range pins.Names() {
			identity[name] = name
		}
		return identity, nil
	}

	resolved := make(map[string]string, len(bindings))
	bound := make(map[string]struct{}, len(bindings))
	for arg, pin := range bindings {
		if !pins.Has(pin) {
			return nil, domain.NewPinError(domain.SideInput, pin, domain.ErrUnknownPin)
		}
		if _, dup := bound[pin]; dup {
			return nil, domain.NewDuplicateNameError(domain.SideInput, pin)
		}
		bound[pin] = struct{}{}
		resolved[arg] = pin
	}
	return resolved, nil
}

func resolveOutputs(pins domain.PinSet, bindings map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, pins.Len())
	for _, name := range pins.Names() {
		resolved[name] = name
	}
	if bindings == nil {
		return resolved, nil
	}

	for pin, column := range bindings {
		if !pins.Has(pin) {
			return nil, domain.NewPinError(domain.SideOutput, pin, domain.ErrUnknownPin)
		}
		resolved[pin] = column
	}

	columns := make(map[string]struct{}, len(resolved))
	for _, column := range resolved {
		if _, dup := columns[column]; dup {
			return nil, domain.NewDuplicateNameError(domain.SideOutput, column)
		}
		columns[column] = struct{}{}
	}
	return resolved, nil
}

// Function returns the bound instance.
func (a *FunctionApplier) Function() ports.Function { return a.fn }

// Info returns the contract the binding was resolved against.
func (a *FunctionApplier) Info() domain.FunctionInfo { return a.info }

// InputPin returns the input pin fed by a call-site argument.
func (a *FunctionApplier) InputPin(argument string) (string, bool) {
	pin, ok := a.argToPin[argument]
	return pin, ok
}

// OutputColumn returns the call-site column written by an output pin.
func (a *FunctionApplier) OutputColumn(pin string) (string, bool) {
	column, ok := a.pinToColumn[pin]
	return column, ok
}

// Apply runs one invocation. args holds call-site arguments; the result is
// keyed by call-site column.
//
// Before calling the function, every required input pin must be bound
// (domain.ErrInputMissing) and every bound value must match its pin's type
// (domain.ErrTypeMismatch). Afterwards the output must hold exactly the
// declared output pins with matching types, otherwise the invocation fails
// with a *domain.IncompleteOutputError or a *domain.PinError. Call-site
// arguments that feed no pin are ignored. A failed invocation leaves the
// applier and the function usable.
func (a *FunctionApplier) Apply(ctx context.Context, args domain.Context) (domain.Output, error) {
	input, err := a.bindInputs(args)
	if err != nil {
		return domain.Output{}, err
	}

	out, err := a.fn.Apply(ctx, a, input)
	if err != nil {
		return domain.Output{}, err
	}

	return a.bindOutputs(out)
}

func (a *FunctionApplier) bindInputs(args domain.Context) (domain.Context, error) {
	values := make(map[string]domain.Value, len(a.argToPin))
	for arg, pin := range a.argToPin {
		if v, ok := args.Get(arg); ok {
			values[pin] = v
		}
	}

	for _, pin := range a.info.Inputs().Pins() {
		v, ok := values[pin.Name]
		if !ok {
			if pin.Optional {
				continue
			}
			return domain.Context{}, domain.NewInputError(pin.Name, "", domain.ErrInputMissing)
		}
		if !pin.Info.Accepts(v.Payload()) {
			return domain.Context{}, domain.NewInputError(pin.Name, pin.Info.String(), domain.ErrTypeMismatch)
		}
	}

	return domain.ContextOf(values), nil
}

func (a *FunctionApplier) bindOutputs(out domain.Output) (domain.Output, error) {
	outputs := a.info.Outputs()

	for _, name := range out.Names() {
		if !outputs.Has(name) {
			return domain.Output{}, domain.NewPinError(domain.SideOutput, name, domain.ErrUnknownPin)
		}
	}

	var missing []string
	result := domain.NewOutput()
	for _, pin := range outputs.Pins() {
		v, ok := out.Get(pin.Name)
		if !ok {
			missing = append(missing, pin.Name)
			continue
		}
		if !pin.Info.Accepts(v.Payload()) {
			return domain.Output{}, domain.NewPinError(domain.SideOutput, pin.Name,
				fmt.Errorf("%w: expected %s", domain.ErrTypeMismatch, pin.Info))
		}
		if err := result.Set(a.pinToColumn[pin.Name], v); err != nil {
			return domain.Output{}, err
		}
	}
	if len(missing) > 0 {
		return domain.Output{}, &domain.IncompleteOutputError{Missing: missing}
	}

	return result, nil
}

// ApplyBatch applies the function to every row concurrently, with at most
// concurrency invocations in flight (unbounded when concurrency <= 0).
// Results are returned in row order. The first failure cancels the rows
// that have not started and is returned annotated with its row index.
func (a *FunctionApplier) ApplyBatch(ctx context.Context, rows []domain.Context, concurrency int) ([]domain.Output, error) {
	results := make([]domain.Output, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := a.Apply(gctx, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Bindings returns copies of the resolved input and output layouts.
func (a *FunctionApplier) Bindings() (inputs, outputs map[string]string) {
	return maps.Clone(a.argToPin), maps.Clone(a.pinToColumn)
}
