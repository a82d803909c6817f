package file

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used when neither the call nor the configuration names one.
const DefaultCharset = "UTF-8"

// lookupCharset resolves an IANA or WHATWG charset label.
func lookupCharset(name string) (encoding.Encoding, error) {
	label := strings.TrimSpace(name)
	if label == "" {
		label = DefaultCharset
	}
	if strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return unicode.UTF8, nil
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: unsupported charset %q", ErrInvalidArgument, name)
}

// encodeString converts s to bytes in the named charset.
func encodeString(s, charset string) ([]byte, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: content not representable in %s: %v", ErrInvalidArgument, charset, err)
	}
	return b, nil
}

// decodeBytes converts b from the named charset to a string.
func decodeBytes(b []byte, charset string) (string, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: cannot decode as %s: %v", ErrIOFailure, charset, err)
	}
	return string(out), nil
}
