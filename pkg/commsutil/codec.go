package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrEmptyPayload is returned when a message carries no data.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target. Untyped numbers decode
// as json.Number so integers survive without float rounding.
func DecodePayload(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
