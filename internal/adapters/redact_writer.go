package adapters

import (
	"bytes"
	"io"
	"sync"

	"python-buildpack/internal/shared"
)

// redactingWriter masks URL credentials line by line before forwarding to
// out. Partial lines are held back until a newline or Flush.
type redactingWriter struct {
	mu      sync.Mutex
	out     io.Writer
	pending []byte
}

func newRedactingWriter(out io.Writer) *redactingWriter {
	return &redactingWriter{out: out}
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx == -1 {
			break
		}
		line := shared.RedactCredentials(string(w.pending[:idx+1]))
		w.pending = w.pending[idx+1:]
		if _, err := io.WriteString(w.out, line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

func (w *redactingWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	line := shared.RedactCredentials(string(w.pending))
	w.pending = nil
	_, err := io.WriteString(w.out, line)
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
