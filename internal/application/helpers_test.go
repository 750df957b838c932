package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testHost() *Host {
	return NewHost(zap.NewNop()).WithClock(func() time.Time { return testNow })
}

func yamlDoc(t testing.TB, doc string) yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &node))
	return node
}

// scriptedFunction declares its contract from info and delegates Apply to
// apply. The zero apply echoes input pin "in" to output pin "out".
type scriptedFunction struct {
	info   domain.FunctionInfo
	apply  func(ctx context.Context, a ports.Applier, in domain.Context) (domain.Output, error)
	closed atomic.Bool
}

func (s *scriptedFunction) Status() any                       { return "scripted" }
func (s *scriptedFunction) FunctionInfo() domain.FunctionInfo { return s.info }

func (s *scriptedFunction) Apply(ctx context.Context, a ports.Applier, in domain.Context) (domain.Output, error) {
	if s.apply != nil {
		return s.apply(ctx, a, in)
	}
	out := domain.NewOutput()
	v, _ := in.Get("in")
	return out, out.Set("out", v)
}

func (s *scriptedFunction) Close() error {
	s.closed.Store(true)
	return nil
}

// echoInfo declares one required "in" input and one "out" output.
func echoInfo(t testing.TB, in, out domain.ValueInfo) domain.FunctionInfo {
	t.Helper()
	info := domain.NewFunctionInfo()
	require.NoError(t, info.AddInput("in", in))
	require.NoError(t, info.AddOutput("out", out))
	return info
}

// countingType registers a factory that counts its invocations and builds
// a fresh echo function each time.
func countingType(t testing.TB, name string, calls *atomic.Int32) ports.FunctionType {
	info := echoInfo(t, domain.AnyValueInfo(), domain.AnyValueInfo())
	return ports.FunctionType{
		Name: name,
		Factory: func(context.Context, ports.Server, yaml.Node, ports.ProgressFunc) (ports.Function, error) {
			calls.Add(1)
			return &scriptedFunction{info: info}, nil
		},
		ConfigSchema: "none",
		Description:  "counts constructions",
	}
}

var errBoom = errors.New("boom")
