package application

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

func args(pairs ...any) domain.Context {
	c := domain.NewContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		c = c.With(pairs[i].(string), domain.NewValue(pairs[i+1], testNow))
	}
	return c
}

func TestBind(t *testing.T) {
	info := domain.NewFunctionInfo()
	require.NoError(t, info.AddInput("text", domain.StringValueInfo()))
	require.NoError(t, info.AddInput("reference", domain.StringValueInfo()))
	require.NoError(t, info.AddOutput("equal", domain.BoolValueInfo()))
	require.NoError(t, info.AddOutput("score", domain.FloatValueInfo()))
	fn := &scriptedFunction{info: info}

	tests := []struct {
		name     string
		inputs   map[string]string
		outputs  map[string]string
		wantIn   map[string]string
		wantOut  map[string]string
		wantKind error
		wantSide domain.Side
	}{
		{
			name:    "identity",
			wantIn:  map[string]string{"text": "text", "reference": "reference"},
			wantOut: map[string]string{"equal": "equal", "score": "score"},
		},
		{
			name:    "renamed",
			inputs:  map[string]string{"answer": "text", "gold": "reference"},
			outputs: map[string]string{"equal": "correct"},
			wantIn:  map[string]string{"answer": "text", "gold": "reference"},
			wantOut: map[string]string{"equal": "correct", "score": "score"},
		},
		{
			name:     "unknown input pin",
			inputs:   map[string]string{"answer": "txt"},
			wantKind: domain.ErrUnknownPin,
			wantSide: domain.SideInput,
		},
		{
			name:     "unknown output pin",
			outputs:  map[string]string{"missing": "col"},
			wantKind: domain.ErrUnknownPin,
			wantSide: domain.SideOutput,
		},
		{
			name:     "two arguments on one pin",
			inputs:   map[string]string{"a": "text", "b": "text"},
			wantKind: domain.ErrDuplicateName,
		},
		{
			name:     "two pins on one column",
			outputs:  map[string]string{"equal": "score"},
			wantKind: domain.ErrDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Bind(fn, tt.inputs, tt.outputs)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.Nil(t, a)
				assert.ErrorIs(t, err, tt.wantKind)
				var pinErr *domain.PinError
				if tt.wantSide != "" && assert.ErrorAs(t, err, &pinErr) {
					assert.Equal(t, tt.wantSide, pinErr.Side)
				}
				return
			}

			require.NoError(t, err)
			in, out := a.Bindings()
			assert.Equal(t, tt.wantIn, in)
			assert.Equal(t, tt.wantOut, out)
			assert.Same(t, fn, a.Function())
			assert.True(t, a.Info().Equal(info))
		})
	}
}

func TestBind_NilFunction(t *testing.T) {
	_, err := Bind(nil, nil, nil)
	assert.Error(t, err)
}

func TestApplier_Apply(t *testing.T) {
	fn := &scriptedFunction{info: echoInfo(t, domain.StringValueInfo(), domain.StringValueInfo())}

	t.Run("identity", func(t *testing.T) {
		a, err := Bind(fn, nil, nil)
		require.NoError(t, err)

		out, err := a.Apply(context.Background(), args("in", "hi"))
		require.NoError(t, err)
		v, ok := out.Get("out")
		require.True(t, ok)
		assert.True(t, v.Equal(domain.NewValue("hi", testNow)))
	})

	t.Run("renamed", func(t *testing.T) {
		a, err := Bind(fn, map[string]string{"arg": "in"}, map[string]string{"out": "col"})
		require.NoError(t, err)

		out, err := a.Apply(context.Background(), args("arg", "hi", "in", "ignored"))
		require.NoError(t, err)
		v, ok := out.Get("col")
		require.True(t, ok)
		assert.Equal(t, "hi", v.Payload())
		assert.Equal(t, []string{"col"}, out.Names())
	})

	t.Run("extra arguments ignored", func(t *testing.T) {
		a, err := Bind(fn, nil, nil)
		require.NoError(t, err)

		out, err := a.Apply(context.Background(), args("in", "x", "unused", 1))
		require.NoError(t, err)
		assert.Equal(t, 1, out.Len())
	})

	t.Run("missing input", func(t *testing.T) {
		a, err := Bind(fn, nil, nil)
		require.NoError(t, err)

		_, err = a.Apply(context.Background(), args("other", "x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInputMissing)
		var inErr *domain.InputError
		require.ErrorAs(t, err, &inErr)
		assert.Equal(t, "in", inErr.Pin)
	})

	t.Run("input type mismatch", func(t *testing.T) {
		a, err := Bind(fn, nil, nil)
		require.NoError(t, err)

		_, err = a.Apply(context.Background(), args("in", 42))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTypeMismatch)
		assert.Contains(t, err.Error(), "expected=string")
	})
}

func TestApplier_OptionalInput(t *testing.T) {
	info := domain.NewFunctionInfo()
	require.NoError(t, info.AddOptionalInput("in", domain.StringValueInfo()))
	require.NoError(t, info.AddOutput("present", domain.BoolValueInfo()))

	fn := &scriptedFunction{
		info: info,
		apply: func(_ context.Context, _ ports.Applier, in domain.Context) (domain.Output, error) {
			_, ok := in.Get("in")
			out := domain.NewOutput()
			return out, out.Set("present", domain.NewValue(ok, testNow))
		},
	}
	a, err := Bind(fn, nil, nil)
	require.NoError(t, err)

	out, err := a.Apply(context.Background(), domain.NewContext())
	require.NoError(t, err)
	v, _ := out.Get("present")
	assert.Equal(t, false, v.Payload())

	out, err = a.Apply(context.Background(), args("in", "x"))
	require.NoError(t, err)
	v, _ = out.Get("present")
	assert.Equal(t, true, v.Payload())

	_, err = a.Apply(context.Background(), args("in", 3))
	assert.ErrorIs(t, err, domain.ErrTypeMismatch, "optional inputs are still type checked")
}

func TestApplier_OutputChecks(t *testing.T) {
	info := domain.NewFunctionInfo()
	require.NoError(t, info.AddOutput("score", domain.FloatValueInfo()))
	require.NoError(t, info.AddOutput("match", domain.BoolValueInfo()))

	tests := []struct {
		name    string
		produce func(out *domain.Output) error
		kind    error
		check   func(t *testing.T, err error)
	}{
		{
			name: "undeclared output",
			produce: func(out *domain.Output) error {
				_ = out.Set("score", domain.NewValue(0.5, testNow))
				_ = out.Set("match", domain.NewValue(true, testNow))
				return out.Set("extra", domain.NewValue(1, testNow))
			},
			kind: domain.ErrUnknownPin,
		},
		{
			name: "wrong output type",
			produce: func(out *domain.Output) error {
				_ = out.Set("score", domain.NewValue("high", testNow))
				return out.Set("match", domain.NewValue(true, testNow))
			},
			kind: domain.ErrTypeMismatch,
		},
		{
			name: "missing outputs",
			produce: func(out *domain.Output) error {
				return nil
			},
			kind: domain.ErrIncompleteOutput,
			check: func(t *testing.T, err error) {
				var inc *domain.IncompleteOutputError
				require.ErrorAs(t, err, &inc)
				assert.Equal(t, []string{"score", "match"}, inc.Missing)
			},
		},
		{
			name: "function failure",
			produce: func(out *domain.Output) error {
				return errBoom
			},
			kind: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := &scriptedFunction{
				info: info,
				apply: func(context.Context, ports.Applier, domain.Context) (domain.Output, error) {
					out := domain.NewOutput()
					if err := tt.produce(&out); err != nil {
						return domain.Output{}, err
					}
					return out, nil
				},
			}
			a, err := Bind(fn, nil, nil)
			require.NoError(t, err)

			_, err = a.Apply(context.Background(), domain.NewContext())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestApplier_FailureLeavesApplierUsable(t *testing.T) {
	var fail atomic.Bool
	fn := &scriptedFunction{info: echoInfo(t, domain.AnyValueInfo(), domain.AnyValueInfo())}
	fn.apply = func(_ context.Context, _ ports.Applier, in domain.Context) (domain.Output, error) {
		if fail.Load() {
			return domain.Output{}, errBoom
		}
		out := domain.NewOutput()
		v, _ := in.Get("in")
		return out, out.Set("out", v)
	}

	a, err := Bind(fn, nil, nil)
	require.NoError(t, err)

	fail.Store(true)
	_, err = a.Apply(context.Background(), args("in", 1))
	require.ErrorIs(t, err, errBoom)

	fail.Store(false)
	out, err := a.Apply(context.Background(), args("in", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestApplier_PassesItselfToFunction(t *testing.T) {
	var seen ports.Applier
	fn := &scriptedFunction{info: echoInfo(t, domain.AnyValueInfo(), domain.AnyValueInfo())}
	fn.apply = func(_ context.Context, a ports.Applier, in domain.Context) (domain.Output, error) {
		seen = a
		out := domain.NewOutput()
		v, _ := in.Get("in")
		return out, out.Set("out", v)
	}

	a, err := Bind(fn, map[string]string{"x": "in"}, map[string]string{"out": "y"})
	require.NoError(t, err)
	_, err = a.Apply(context.Background(), args("x", 1))
	require.NoError(t, err)

	require.Same(t, a, seen)
	pin, ok := seen.InputPin("x")
	assert.True(t, ok)
	assert.Equal(t, "in", pin)
	col, ok := seen.OutputColumn("out")
	assert.True(t, ok)
	assert.Equal(t, "y", col)
}

func TestApplier_ApplyBatch(t *testing.T) {
	fn := &scriptedFunction{info: echoInfo(t, domain.IntegerValueInfo(), domain.IntegerValueInfo())}
	a, err := Bind(fn, nil, nil)
	require.NoError(t, err)

	t.Run("results in row order", func(t *testing.T) {
		rows := make([]domain.Context, 50)
		for i := range rows {
			rows[i] = args("in", i)
		}

		outs, err := a.ApplyBatch(context.Background(), rows, 4)
		require.NoError(t, err)
		require.Len(t, outs, len(rows))
		for i, out := range outs {
			v, ok := out.Get("out")
			require.True(t, ok)
			assert.Equal(t, i, v.Payload())
		}
	})

	t.Run("unbounded concurrency", func(t *testing.T) {
		outs, err := a.ApplyBatch(context.Background(), []domain.Context{args("in", 1), args("in", 2)}, 0)
		require.NoError(t, err)
		assert.Len(t, outs, 2)
	})

	t.Run("first failure labelled with row", func(t *testing.T) {
		rows := []domain.Context{args("in", 1), args("in", "bad"), args("in", 3)}

		_, err := a.ApplyBatch(context.Background(), rows, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTypeMismatch)
		assert.True(t, strings.HasPrefix(err.Error(), "row 1:"), err.Error())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.ApplyBatch(ctx, []domain.Context{args("in", 1)}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestApplier_ConcurrentApply(t *testing.T) {
	fn := &scriptedFunction{info: echoInfo(t, domain.AnyValueInfo(), domain.AnyValueInfo())}
	a, err := Bind(fn, nil, nil)
	require.NoError(t, err)

	done := make(chan error, 16)
	for i := range 16 {
		go func() {
			out, err := a.Apply(context.Background(), args("in", i))
			if err == nil {
				if v, _ := out.Get("out"); v.Payload() != i {
					err = fmt.Errorf("row %d got %v", i, v.Payload())
				}
			}
			done <- err
		}()
	}
	deadline := time.After(5 * time.Second)
	for range 16 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-deadline:
			t.Fatal("timed out")
		}
	}
}
