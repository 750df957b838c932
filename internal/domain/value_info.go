package domain

import (
	"fmt"
	"reflect"
	"time"
)

// ValueKind classifies the payloads a pin accepts.
type ValueKind string

// Supported value kinds.
const (
	KindAny       ValueKind = "any"
	KindString    ValueKind = "string"
	KindInteger   ValueKind = "integer"
	KindFloat     ValueKind = "float"
	KindBool      ValueKind = "bool"
	KindTimestamp ValueKind = "timestamp"
	KindArray     ValueKind = "array"
)

// ValueInfo is the type descriptor attached to a pin. It is consulted by
// the applier, never by Value itself.
type ValueInfo interface {
	// Kind returns the coarse classification of accepted payloads.
	Kind() ValueKind

	// Accepts reports whether payload conforms to this descriptor.
	Accepts(payload any) bool

	// String returns a human-readable name such as "string" or "array<float>".
	String() string
}

type scalarInfo struct {
	kind ValueKind
}

func (s scalarInfo) Kind() ValueKind { return s.kind }
func (s scalarInfo) String() string  { return string(s.kind) }

func (s scalarInfo) Accepts(payload any) bool {
	switch s.kind {
	case KindAny:
		return true
	case KindString:
		_, ok := payload.(string)
		return ok
	case KindInteger:
		if payload == nil {
			return false
		}
		switch reflect.TypeOf(payload).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case KindFloat:
		switch payload.(type) {
		case float32, float64:
			return true
		}
		return false
	case KindBool:
		_, ok := payload.(bool)
		return ok
	case KindTimestamp:
		_, ok := payload.(time.Time)
		return ok
	default:
		return false
	}
}

// AnyValueInfo accepts every payload, including nil.
func AnyValueInfo() ValueInfo { return scalarInfo{kind: KindAny} }

// StringValueInfo accepts string payloads.
func StringValueInfo() ValueInfo { return scalarInfo{kind: KindString} }

// IntegerValueInfo accepts any signed or unsigned Go integer.
func IntegerValueInfo() ValueInfo { return scalarInfo{kind: KindInteger} }

// FloatValueInfo accepts float32 and float64 payloads.
func FloatValueInfo() ValueInfo { return scalarInfo{kind: KindFloat} }

// BoolValueInfo accepts bool payloads.
func BoolValueInfo() ValueInfo { return scalarInfo{kind: KindBool} }

// TimestampValueInfo accepts time.Time payloads.
func TimestampValueInfo() ValueInfo { return scalarInfo{kind: KindTimestamp} }

type arrayInfo struct {
	elem ValueInfo
}

// ArrayValueInfo accepts slices and arrays whose every element is accepted
// by elem.
func ArrayValueInfo(elem ValueInfo) ValueInfo {
	if elem == nil {
		elem = AnyValueInfo()
	}
	return arrayInfo{elem: elem}
}

func (a arrayInfo) Kind() ValueKind { return KindArray }

func (a arrayInfo) Accepts(payload any) bool {
	if payload == nil {
		return false
	}
	v := reflect.ValueOf(payload)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if !a.elem.Accepts(v.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func (a arrayInfo) String() string { return fmt.Sprintf("array<%s>", a.elem) }

// SameValueInfo reports whether two descriptors describe the same type.
func SameValueInfo(a, b ValueInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.String() == b.String()
}
