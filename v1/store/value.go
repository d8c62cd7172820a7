package store

import (
	"strconv"
	"strings"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	// KindRaw is a value written by something other than this package.
	KindRaw Kind = iota
	// KindInt is an integer, used for permit counters.
	KindInt
	// KindBool is a boolean, used for signal flags.
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "raw"
	}
}

// Value is an integer or boolean cache value.
type Value struct {
	kind Kind
	n    int64
	b    bool
	raw  string
}

// Int returns an integer Value.
func Int(n int64) Value { return Value{kind: KindInt, n: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer held by v and whether v is an integer.
func (v Value) Int() (int64, bool) { return v.n, v.kind == KindInt }

// Bool returns the boolean held by v and whether v is a boolean.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Truthy reports whether v counts as set: a non-zero integer, true, or a
// non-empty raw value.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindInt:
		return v.n != 0
	case KindBool:
		return v.b
	default:
		return v.raw != ""
	}
}

// String returns the wire form of v. Integers are encoded in decimal so
// that the native increment commands of the backends work on them.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.raw
	}
}

// Parse decodes the wire form produced by String. Memcached may pad
// decremented numbers with trailing spaces, so surrounding whitespace is
// ignored.
func Parse(s string) Value {
	t := strings.TrimSpace(s)
	switch t {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return Int(n)
	}
	return Value{kind: KindRaw, raw: s}
}
