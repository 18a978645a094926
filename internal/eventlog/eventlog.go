// Package eventlog writes append-only JSON-line event records for the chat
// routes. Writes are best effort: they never block the caller and write
// errors are dropped.
package eventlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// queueSize is the number of pending lines buffered before new ones are
// dropped.
const queueSize = 1024

// Sink records structured events. A nil *Sink is valid and discards
// everything.
type Sink struct {
	logger *zap.Logger
	writer *asyncWriter
}

// Open appends to the file at path, tagging every line with backend. On
// failure it returns a discarding Sink along with the error, so callers can
// log the problem and carry on.
func Open(path, backend string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Nop(), fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Nop(), fmt.Errorf("open event log: %w", err)
	}
	return New(f, backend), nil
}

// New builds a Sink over w. If w is an io.Closer it is closed by Close.
func New(w io.Writer, backend string) *Sink {
	aw := newAsyncWriter(w)
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339Nano),
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), aw, zapcore.DebugLevel)
	logger := zap.New(core, zap.ErrorOutput(zapcore.AddSync(io.Discard))).
		With(zap.String("backend", backend))
	return &Sink{logger: logger, writer: aw}
}

// Nop returns a Sink that discards all events.
func Nop() *Sink {
	return &Sink{logger: zap.NewNop()}
}

// Event appends one record named event.
func (s *Sink) Event(event string, fields ...zap.Field) {
	if s == nil {
		return
	}
	s.logger.Info(event, fields...)
}

// With returns a Sink whose records all carry fields.
func (s *Sink) With(fields ...zap.Field) *Sink {
	if s == nil {
		return nil
	}
	return &Sink{logger: s.logger.With(fields...), writer: s.writer}
}

// Dropped reports how many lines were discarded because the queue was full.
func (s *Sink) Dropped() uint64 {
	if s == nil || s.writer == nil {
		return 0
	}
	return s.writer.dropped.Load()
}

// Close flushes queued lines and releases the file. Derived sinks share the
// writer, so only the root Sink should be closed.
func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

type asyncWriter struct {
	out     io.Writer
	lines   chan []byte
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newAsyncWriter(out io.Writer) *asyncWriter {
	w := &asyncWriter{
		out:   out,
		lines: make(chan []byte, queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Write queues a copy of p; zap reuses its buffer after Write returns.
func (w *asyncWriter) Write(p []byte) (int, error) {
	select {
	case <-w.quit:
		return len(p), nil
	default:
	}
	line := append([]byte(nil), p...)
	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *asyncWriter) Sync() error { return nil }

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line := <-w.lines:
			_, _ = w.out.Write(line)
		case <-w.quit:
			for {
				select {
				case line := <-w.lines:
					_, _ = w.out.Write(line)
				default:
					return
				}
			}
		}
	}
}

func (w *asyncWriter) Close() error {
	var err error
	w.once.Do(func() {
		close(w.quit)
		<-w.done
		if c, ok := w.out.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
