package file

import (
	"time"

	"github.com/morezero/script-runtime/pkg/events"
)

const (
	DefaultUserAgent      = "script-runtime/1.0"
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxBodySize    = 256 << 20 // 256MB
	DefaultMaxURLLength   = 8192
)

// Config holds the file plugin settings.
type Config struct {
	// DefaultCharset applies to write/string calls that name no charset.
	DefaultCharset string
	UserAgent      string
	RequestTimeout time.Duration
	// MaxBodySize caps one downloaded resource; larger bodies fail that URL.
	MaxBodySize  int64
	MaxURLLength int
	// RequestsPerSecond, when positive, caps the fetch rate across all download calls.
	RequestsPerSecond float64
	// Publisher receives one event per attempted URL.
	Publisher events.Publisher
}

// DefaultConfig returns the default plugin configuration.
func DefaultConfig() Config {
	return Config{
		DefaultCharset: DefaultCharset,
		UserAgent:      DefaultUserAgent,
		RequestTimeout: DefaultRequestTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		MaxURLLength:   DefaultMaxURLLength,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultCharset == "" {
		c.DefaultCharset = DefaultCharset
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.MaxURLLength == 0 {
		c.MaxURLLength = DefaultMaxURLLength
	}
	if c.Publisher == nil {
		c.Publisher = &events.NoOpPublisher{}
	}
	return c
}
