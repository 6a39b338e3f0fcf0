package logging

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// lineWriter prefixes every complete line written to it with a sequence
// number and a timestamp. Partial lines are held until their newline arrives.
type lineWriter struct {
	mu     sync.Mutex
	target io.Writer
	seq    uint64
	buf    bytes.Buffer
	now    func() time.Time
}

func newLineWriter(target io.Writer) *lineWriter {
	return &lineWriter{target: target, now: time.Now}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		if err := w.writeLine(bytes.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

func (w *lineWriter) writeLine(line []byte) error {
	w.seq++
	prefix := slog.Uint64("line", w.seq).String() + " " +
		slog.String("time", w.now().Format(time.RFC3339)).String() + " "
	if _, err := io.WriteString(w.target, prefix); err != nil {
		return err
	}
	if _, err := w.target.Write(line); err != nil {
		return err
	}
	_, err := io.WriteString(w.target, "\n")
	return err
}

// Close flushes a trailing partial line.
func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	line := w.buf.Bytes()
	w.buf.Reset()
	return w.writeLine(line)
}
