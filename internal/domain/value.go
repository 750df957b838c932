// Package domain contains pure, dependency-free domain models and types
// for the function registry and invocation core.
package domain

import (
	"fmt"
	"reflect"
	"time"
)

// Value is a payload paired with the logical time at which it became known.
// Values are immutable: the payload is deep copied on construction and on
// every read, so neither the producer nor a consumer can alter a Value that
// has been handed to someone else.
type Value struct {
	// payload holds the scalar or structured data carried by this value.
	payload any
	// timestamp is when the payload became true. It orders values within a
	// function's output stream but makes no wall-clock promise.
	timestamp time.Time
}

// NewValue creates a Value holding payload as of ts.
// It never fails; checking the payload against a pin's type descriptor is
// the consumer's job.
//
// Example:
//
//	world := NewValue("world", time.Now())
func NewValue(payload any, ts time.Time) Value {
	return Value{
		payload:   deepCopyValue(payload),
		timestamp: ts,
	}
}

// Payload returns a copy of the carried data.
func (v Value) Payload() any { return deepCopyValue(v.payload) }

// Timestamp returns the time at which the payload became known.
func (v Value) Timestamp() time.Time { return v.timestamp }

// IsZero reports whether v is the zero Value (no payload, zero time).
func (v Value) IsZero() bool { return v.payload == nil && v.timestamp.IsZero() }

// Equal reports whether v and other carry deeply equal payloads at the same
// instant. Timestamps are compared with time.Time.Equal so values built in
// different locations still compare equal.
func (v Value) Equal(other Value) bool {
	return v.timestamp.Equal(other.timestamp) && reflect.DeepEqual(v.payload, other.payload)
}

// Before reports whether v became known strictly before other.
func (v Value) Before(other Value) bool { return v.timestamp.Before(other.timestamp) }

// After reports whether v became known strictly after other.
func (v Value) After(other Value) bool { return v.timestamp.After(other.timestamp) }

// String returns a debugging representation of the value.
func (v Value) String() string {
	return fmt.Sprintf("%v@%s", v.payload, v.timestamp.Format(time.RFC3339Nano))
}

// Latest returns the greatest timestamp among values, or the zero time when
// values is empty. Functions deriving an output from several inputs use it
// so the result is never known before its inputs.
func Latest(values ...Value) time.Time {
	var latest time.Time
	for _, v := range values {
		if v.timestamp.After(latest) {
			latest = v.timestamp
		}
	}
	return latest
}

// deepCopyValue creates a deep copy of a payload so that slices, maps and
// pointers held by a Value cannot be modified through an alias. Shared and
// cyclic references are preserved: a reference seen twice is copied once.
func deepCopyValue(value any) any {
	c := copier{seen: make(map[visitKey]reflect.Value)}
	return c.copy(value)
}

// visitKey identifies a reference-typed value already being copied.
type visitKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type copier struct {
	seen map[visitKey]reflect.Value
}

func (c *copier) copy(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}
		if done, ok := c.seen[key]; ok {
			return done.Interface()
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		c.seen[key] = newSlice
		for i := 0; i < v.Len(); i++ {
			c.copyInto(newSlice.Index(i), v.Index(i))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if done, ok := c.seen[key]; ok {
			return done.Interface()
		}
		newMap := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = newMap
		iter := v.MapRange()
		for iter.Next() {
			elem := reflect.New(v.Type().Elem()).Elem()
			c.copyInto(elem, iter.Value())
			newMap.SetMapIndex(iter.Key(), elem)
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return value
		}
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if done, ok := c.seen[key]; ok {
			return done.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		c.seen[key] = newPtr
		c.copyInto(newPtr.Elem(), v.Elem())
		return newPtr.Interface()

	case reflect.Struct:
		// Unexported fields keep the shallow copy made by the assignment;
		// exported fields are copied deeply.
		newStruct := reflect.New(v.Type()).Elem()
		newStruct.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				c.copyInto(newStruct.Field(i), v.Field(i))
			}
		}
		return newStruct.Interface()

	default:
		return value
	}
}

// copyInto stores a deep copy of src into dst. Nil interface and nil
// pointer elements are preserved as zero values of dst's type.
func (c *copier) copyInto(dst, src reflect.Value) {
	if !src.IsValid() {
		return
	}
	if src.Kind() == reflect.Interface {
		if src.IsNil() {
			return
		}
		src = src.Elem()
	}
	copied := c.copy(src.Interface())
	if copied == nil {
		return
	}
	dst.Set(reflect.ValueOf(copied))
}
