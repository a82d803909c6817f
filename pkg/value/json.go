package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// bytesKey tags a base64 byte payload on the wire: {"$bytes":"aGVsbG8="}.
const bytesKey = "$bytes"

// ErrStreamNotEncodable is returned when a stream value is marshalled.
var ErrStreamNotEncodable = errors.New("stream values cannot be encoded")

// MarshalJSON encodes the value for the invocation gateway.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindBytes:
		return json.Marshal(map[string]string{bytesKey: base64.StdEncoding.EncodeToString(v.raw)})
	case KindInteger:
		return json.Marshal(v.num)
	case KindBoolean:
		return json.Marshal(v.flag)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	case KindStream:
		return nil, ErrStreamNotEncodable
	}
	return nil, fmt.Errorf("unknown value kind %d", int(v.kind))
}

// UnmarshalJSON decodes a wire value. Numbers must be integral.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FromAny converts a decoded JSON tree (decoded with UseNumber, or with native Go
// integers) into a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("number %s is not an integer", x.String())
		}
		return Int(n), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		// 2^63 is exactly representable; anything at or above it does not fit an int64.
		if x < math.MinInt64 || x >= math.MaxInt64 || x != math.Trunc(x) {
			return Value{}, fmt.Errorf("number %v is not an integer", x)
		}
		return Int(int64(x)), nil
	case []byte:
		return Bytes(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = iv
		}
		return Value{kind: KindList, list: items}, nil
	case []string:
		return Strings(x...), nil
	case map[string]any:
		enc, ok := x[bytesKey].(string)
		if !ok || len(x) != 1 {
			return Value{}, fmt.Errorf("objects are not runtime values (only {%q: base64} is accepted)", bytesKey)
		}
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return Value{}, fmt.Errorf("invalid %s payload: %w", bytesKey, err)
		}
		return Value{kind: KindBytes, raw: b}, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", raw)
}

// ToAny converts a Value into plain Go data: string, []byte, int64, bool, []any or nil.
// Streams are returned as *Stream.
func ToAny(v Value) any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		b, _ := v.AsBytes()
		return b
	case KindInteger:
		return v.num
	case KindBoolean:
		return v.flag
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = ToAny(item)
		}
		return out
	case KindStream:
		return v.strm
	}
	return nil
}
