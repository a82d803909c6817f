package commsutil

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/morezero/script-runtime/pkg/value"
)

const codecTestPrefix = "commsutil:codec_test"

// invokePayload mirrors the gateway request envelope without importing the dispatcher.
type invokePayload struct {
	ID   string        `json:"id"`
	Call string        `json:"call"`
	Args []value.Value `json:"args"`
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    string
		wantErr bool
	}{
		{
			name:  "string value",
			input: value.String("hello"),
			want:  `"hello"`,
		},
		{
			name:  "bytes value",
			input: value.Bytes([]byte("hi")),
			want:  `{"$bytes":"aGk="}`,
		},
		{
			name:  "url list",
			input: value.Strings("http://a/1.png", "http://a/2.png"),
			want:  `["http://a/1.png","http://a/2.png"]`,
		},
		{
			name: "invoke envelope",
			input: invokePayload{
				ID:   "r1",
				Call: "file.write@^1",
				Args: []value.Value{value.String("/tmp/a"), value.Int(3)},
			},
			want: `{"id":"r1","call":"file.write@^1","args":["/tmp/a",3]}`,
		},
		{
			name:  "nil",
			input: nil,
			want:  "null",
		},
		{
			name:    "channel is not serializable",
			input:   make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error but got nil", codecTestPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
			}
			if got := string(data); got != tt.want {
				t.Errorf("%s - EncodePayload() = %q, want %q", codecTestPrefix, got, tt.want)
			}
		})
	}
}

func TestDecodePayload_InvokeEnvelope(t *testing.T) {
	data := []byte(`{"id":"r2","call":"file.download","args":["/tmp/d",["http://a/x"],[1000,4000]]}`)

	var req invokePayload
	if err := DecodePayload(data, &req); err != nil {
		t.Fatalf("%s - decode failed: %v", codecTestPrefix, err)
	}
	if req.ID != "r2" || req.Call != "file.download" {
		t.Errorf("%s - envelope = %+v", codecTestPrefix, req)
	}
	if len(req.Args) != 3 {
		t.Fatalf("%s - got %d args, want 3", codecTestPrefix, len(req.Args))
	}
	if req.Args[1].Kind() != value.KindList || req.Args[2].Kind() != value.KindList {
		t.Errorf("%s - arg kinds = %v, %v, want lists", codecTestPrefix, req.Args[1].Kind(), req.Args[2].Kind())
	}
	delay, _ := req.Args[2].AsList()
	if lo, _ := delay[0].AsInt(); lo != 1000 {
		t.Errorf("%s - delay min = %d, want 1000", codecTestPrefix, lo)
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{invalid}`},
		{"object argument", `{"id":"r","call":"file.write","args":[{"k":"v"}]}`},
		{"fractional argument", `{"id":"r","call":"file.write","args":[1.5]}`},
		{"bad base64", `{"id":"r","call":"file.write","args":[{"$bytes":"%%%"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req invokePayload
			if err := DecodePayload([]byte(tt.data), &req); err == nil {
				t.Errorf("%s - expected error for %s", codecTestPrefix, tt.data)
			}
		})
	}
}

func TestDecodePayload_Empty(t *testing.T) {
	for _, data := range []string{"", "  \n"} {
		var req invokePayload
		if err := DecodePayload([]byte(data), &req); !errors.Is(err, ErrEmptyPayload) {
			t.Errorf("%s - DecodePayload(%q) = %v, want ErrEmptyPayload", codecTestPrefix, data, err)
		}
	}
}

func TestDecodePayload_NumbersStayExact(t *testing.T) {
	var target interface{}
	if err := DecodePayload([]byte(`{"n": 9007199254740993}`), &target); err != nil {
		t.Fatalf("%s - decode failed: %v", codecTestPrefix, err)
	}
	n, ok := target.(map[string]interface{})["n"].(json.Number)
	if !ok || n.String() != "9007199254740993" {
		t.Errorf("%s - n = %#v, want exact json.Number", codecTestPrefix, target)
	}
}

func TestRoundTrip_BytesArgument(t *testing.T) {
	original := invokePayload{
		ID:   "r3",
		Call: "fs.write",
		Args: []value.Value{value.String("/tmp/b.bin"), value.Bytes([]byte{0, 1, 2, 255})},
	}
	data, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("%s - encode failed: %v", codecTestPrefix, err)
	}
	var decoded invokePayload
	if err := DecodePayload(data, &decoded); err != nil {
		t.Fatalf("%s - decode failed: %v", codecTestPrefix, err)
	}
	b, ok := decoded.Args[1].AsBytes()
	if !ok || string(b) != string([]byte{0, 1, 2, 255}) {
		t.Errorf("%s - bytes arg = %v, want [0 1 2 255]", codecTestPrefix, b)
	}
}
