package runner

import (
	"io"
	"os"
	"sync"
)

// captureCap bounds the in-memory retention of a single output stream;
// bytes beyond this are still written to the backing file but dropped from
// memory with a truncation marker appended.
const captureCap = 1 << 20 // 1 MiB

var truncationMarker = []byte("\n... output truncated ...\n")

// capture tees a child's stream to a file while retaining up to captureCap
// bytes in memory for quick access by the report writer.
type capture struct {
	mu        sync.Mutex
	file      *os.File
	buf       []byte
	truncated bool
}

func newCapture(path string) (*capture, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	return &capture{file: f}, nil
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()

	if !c.truncated {
		room := captureCap - len(c.buf)
		if room > 0 {
			n := len(p)
			if n > room {
				n = room
			}

			c.buf = append(c.buf, p[:n]...)
		}

		if len(c.buf) >= captureCap {
			c.truncated = true
		}
	}

	c.mu.Unlock()

	return c.file.Write(p)
}

// Bytes returns the in-memory capture, with a truncation marker appended
// if the stream exceeded captureCap.
func (c *capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.truncated {
		return append([]byte(nil), c.buf...)
	}

	out := append([]byte(nil), c.buf...)

	return append(out, truncationMarker...)
}

func (c *capture) Close() error {
	return c.file.Close()
}

var _ io.Writer = (*capture)(nil)
