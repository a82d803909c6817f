package value

import (
	"fmt"
)

// Type is a declared parameter or return type. Every Kind has a matching Type;
// TypeRange is declared-only and is satisfied by a two-integer list.
type Type int

const (
	TypeNull Type = iota
	TypeString
	TypeBytes
	TypeInteger
	TypeBoolean
	TypeList
	TypeStream
	TypeRange
)

var typeNames = [...]string{
	TypeNull:    "null",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeInteger: "integer",
	TypeBoolean: "boolean",
	TypeList:    "list",
	TypeStream:  "stream",
	TypeRange:   "range",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

// Coercion costs used by overload scoring.
const (
	CostExact    = 0
	CostCoercion = 1
)

// CoercionError reports a value that could not be converted to a declared type.
type CoercionError struct {
	Expected Type
	Actual   Kind
	Reason   string
}

func (e *CoercionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot convert %s to %s: %s", e.Actual, e.Expected, e.Reason)
	}
	return fmt.Sprintf("cannot convert %s to %s", e.Actual, e.Expected)
}

// Cost reports whether a value of kind k is acceptable for type t, and at what cost.
// The table is closed: string->bytes, bytes->stream and list->range are the only
// coercions; nothing converts to string and integers never convert.
func Cost(k Kind, t Type) (int, bool) {
	if exact(k, t) {
		return CostExact, true
	}
	switch {
	case k == KindString && t == TypeBytes:
		return CostCoercion, true
	case k == KindBytes && t == TypeStream:
		return CostCoercion, true
	case k == KindList && t == TypeRange:
		return CostCoercion, true
	}
	return 0, false
}

func exact(k Kind, t Type) bool {
	switch t {
	case TypeNull:
		return k == KindNull
	case TypeString:
		return k == KindString
	case TypeBytes:
		return k == KindBytes
	case TypeInteger:
		return k == KindInteger
	case TypeBoolean:
		return k == KindBoolean
	case TypeList:
		return k == KindList
	case TypeStream:
		return k == KindStream
	}
	return false
}

// Coerce converts v to type t. Exact matches return v unchanged.
func Coerce(v Value, t Type) (Value, error) {
	if _, ok := Cost(v.kind, t); !ok {
		return Value{}, &CoercionError{Expected: t, Actual: v.kind}
	}
	if exact(v.kind, t) {
		return v, nil
	}
	switch t {
	case TypeBytes:
		return Value{kind: KindBytes, raw: []byte(v.str)}, nil
	case TypeStream:
		return FromStream(NewBytesStream(v.raw)), nil
	case TypeRange:
		if _, _, err := rangeBounds(v); err != nil {
			return Value{}, err
		}
		return v, nil
	}
	return Value{}, &CoercionError{Expected: t, Actual: v.kind}
}

// Range returns the bounds of a value that satisfies TypeRange.
func Range(v Value) (int64, int64, error) {
	return rangeBounds(v)
}

func rangeBounds(v Value) (int64, int64, error) {
	if v.kind != KindList {
		return 0, 0, &CoercionError{Expected: TypeRange, Actual: v.kind}
	}
	if len(v.list) != 2 {
		return 0, 0, &CoercionError{Expected: TypeRange, Actual: v.kind, Reason: fmt.Sprintf("want 2 items, got %d", len(v.list))}
	}
	lo, ok := v.list[0].AsInt()
	if !ok {
		return 0, 0, &CoercionError{Expected: TypeRange, Actual: v.kind, Reason: "item 0 is " + v.list[0].kind.String()}
	}
	hi, ok := v.list[1].AsInt()
	if !ok {
		return 0, 0, &CoercionError{Expected: TypeRange, Actual: v.kind, Reason: "item 1 is " + v.list[1].kind.String()}
	}
	return lo, hi, nil
}
