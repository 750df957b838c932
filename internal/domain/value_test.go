package domain

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Accessors(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v := NewValue("world", ts)

	assert.Equal(t, "world", v.Payload())
	assert.True(t, v.Timestamp().Equal(ts))
	assert.False(t, v.IsZero())
	assert.True(t, Value{}.IsZero())
}

func TestValue_IsImmutable(t *testing.T) {
	ts := time.Unix(100, 0)

	t.Run("constructor copies", func(t *testing.T) {
		payload := []string{"a", "b"}
		v := NewValue(payload, ts)
		payload[0] = "mutated"

		assert.Equal(t, []string{"a", "b"}, v.Payload())
	})

	t.Run("reads copy", func(t *testing.T) {
		v := NewValue(map[string][]int{"k": {1, 2}}, ts)
		got := v.Payload().(map[string][]int)
		got["k"][0] = 99
		got["new"] = nil

		assert.Equal(t, map[string][]int{"k": {1, 2}}, v.Payload())
	})

	t.Run("pointer targets copied", func(t *testing.T) {
		n := 1
		v := NewValue(&n, ts)
		n = 2

		assert.Equal(t, 1, *(v.Payload().(*int)))
	})

	t.Run("nested any slices", func(t *testing.T) {
		v := NewValue([]any{[]int{1}, "x", nil}, ts)
		got := v.Payload().([]any)
		got[0].([]int)[0] = 7

		assert.Equal(t, []any{[]int{1}, "x", nil}, v.Payload())
	})
}

func TestValue_Equal(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sameInstant := ts.In(time.FixedZone("X", 3600))

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "same payload and time", a: NewValue("world", ts), b: NewValue("world", ts), want: true},
		{name: "same instant other zone", a: NewValue("world", ts), b: NewValue("world", sameInstant), want: true},
		{name: "different payload", a: NewValue("world", ts), b: NewValue("there", ts), want: false},
		{name: "different time", a: NewValue("world", ts), b: NewValue("world", ts.Add(time.Nanosecond)), want: false},
		{name: "deep payload", a: NewValue([]int{1, 2}, ts), b: NewValue([]int{1, 2}, ts), want: true},
		{name: "different payload types", a: NewValue(1, ts), b: NewValue(int64(1), ts), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestValue_Ordering(t *testing.T) {
	early := NewValue(1, time.Unix(10, 0))
	late := NewValue(2, time.Unix(20, 0))

	assert.True(t, early.Before(late))
	assert.True(t, late.After(early))
	assert.False(t, early.After(early))

	require.True(t, Latest(early, late).Equal(time.Unix(20, 0)))
	assert.True(t, Latest().IsZero())
}

func TestValue_String(t *testing.T) {
	v := NewValue("world", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "world@2024-01-01T00:00:00Z", v.String())
}

type node struct {
	Name string
	Next *node
}

func TestValue_CyclicPayloads(t *testing.T) {
	ts := time.Unix(0, 0)

	t.Run("self-referencing map", func(t *testing.T) {
		m := map[string]any{"name": "root"}
		m["self"] = m

		v := NewValue(m, ts)
		got, ok := v.Payload().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "root", got["name"])

		inner, ok := got["self"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, reflect.ValueOf(got).Pointer(), reflect.ValueOf(inner).Pointer(), "cycle is kept inside the copy")
		assert.NotEqual(t, reflect.ValueOf(m).Pointer(), reflect.ValueOf(got).Pointer(), "copy does not alias the original")
	})

	t.Run("pointer ring", func(t *testing.T) {
		a := &node{Name: "a"}
		b := &node{Name: "b", Next: a}
		a.Next = b

		v := NewValue(a, ts)
		got, ok := v.Payload().(*node)
		require.True(t, ok)
		assert.NotSame(t, a, got)
		assert.Equal(t, "b", got.Next.Name)
		assert.Same(t, got, got.Next.Next)
	})

	t.Run("self-containing slice", func(t *testing.T) {
		s := make([]any, 2)
		s[0] = "head"
		s[1] = s

		v := NewValue(s, ts)
		got, ok := v.Payload().([]any)
		require.True(t, ok)
		assert.Equal(t, "head", got[0])
		inner, ok := got[1].([]any)
		require.True(t, ok)
		assert.Equal(t, "head", inner[0])
	})

	t.Run("shared reference copied once", func(t *testing.T) {
		shared := &node{Name: "shared"}
		pair := []*node{shared, shared}

		got, ok := NewValue(pair, ts).Payload().([]*node)
		require.True(t, ok)
		assert.Same(t, got[0], got[1])
		assert.NotSame(t, shared, got[0])
	})
}
