package value

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrStreamConsumed is returned when a stream handle is read after it was taken or released.
var ErrStreamConsumed = errors.New("stream already consumed")

// Stream is a single-use handle over a reader. Exactly one operation may take it;
// the underlying reader is released on read-to-completion or Close.
type Stream struct {
	mu       sync.Mutex
	r        io.Reader
	taken    bool
	released bool
}

// NewStream wraps r. If r implements io.Closer it is closed on release.
func NewStream(r io.Reader) *Stream {
	return &Stream{r: r}
}

// NewBytesStream returns a stream over an in-memory copy of b.
func NewBytesStream(b []byte) *Stream {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Stream{r: bytes.NewReader(cp)}
}

// Take claims exclusive ownership of the stream. The returned reader releases the
// handle when it reaches EOF; callers that stop early must call Close.
func (s *Stream) Take() (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken || s.released {
		return nil, ErrStreamConsumed
	}
	s.taken = true
	return &streamReader{s: s}, nil
}

// Close releases the stream without reading it. Closing twice is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

// Released reports whether the underlying reader has been released.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Stream) releaseLocked() error {
	if s.released {
		return nil
	}
	s.released = true
	var err error
	if c, ok := s.r.(io.Closer); ok {
		err = c.Close()
	}
	s.r = nil
	return err
}

type streamReader struct {
	s *Stream
}

func (sr *streamReader) Read(p []byte) (int, error) {
	sr.s.mu.Lock()
	defer sr.s.mu.Unlock()
	if sr.s.released {
		return 0, io.EOF
	}
	n, err := sr.s.r.Read(p)
	if err == io.EOF {
		if cerr := sr.s.releaseLocked(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

func (sr *streamReader) Close() error {
	return sr.s.Close()
}
