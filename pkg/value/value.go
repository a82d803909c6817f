// Package value implements the runtime values passed between script rules and host operations.
package value

import (
	"fmt"
	"strings"
)

// Kind is the tag carried by every Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindBytes
	KindInteger
	KindBoolean
	KindList
	KindStream
)

var kindNames = [...]string{
	KindNull:    "null",
	KindString:  "string",
	KindBytes:   "bytes",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindList:    "list",
	KindStream:  "stream",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Value is a tagged runtime value. The zero Value is Null.
// A Value never changes its tag after construction; conversions produce new values.
type Value struct {
	kind Kind
	str  string
	raw  []byte
	num  int64
	flag bool
	list []Value
	strm *Stream
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bytes returns a byte-sequence value. The slice is copied.
func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, raw: cp}
}

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInteger, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, flag: b} }

// List returns a list value holding a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Strings is a convenience constructor for a list of string values.
func Strings(items ...string) Value {
	vs := make([]Value, len(items))
	for i, s := range items {
		vs[i] = String(s)
	}
	return Value{kind: KindList, list: vs}
}

// FromStream wraps a stream handle. A nil stream yields Null.
func FromStream(s *Stream) Value {
	if s == nil {
		return Null()
	}
	return Value{kind: KindStream, strm: s}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsBytes returns a copy of the byte payload.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	cp := make([]byte, len(v.raw))
	copy(cp, v.raw)
	return cp, true
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInteger
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBoolean
}

// AsList returns a copy of the list items.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// AsStream returns the stream handle.
func (v Value) AsStream() (*Stream, bool) {
	return v.strm, v.kind == KindStream
}

// Len returns the length of a string, bytes or list value, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindBytes:
		return len(v.raw)
	case KindList:
		return len(v.list)
	}
	return 0
}

// String renders the value for logs and diagnostics. Byte payloads are summarised.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.raw))
	case KindInteger:
		return fmt.Sprintf("%d", v.num)
	case KindBoolean:
		return fmt.Sprintf("%t", v.flag)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindStream:
		return "stream"
	}
	return v.kind.String()
}

// Kinds returns the tag of each value, in order.
func Kinds(vs []Value) []Kind {
	kinds := make([]Kind, len(vs))
	for i, v := range vs {
		kinds[i] = v.kind
	}
	return kinds
}
