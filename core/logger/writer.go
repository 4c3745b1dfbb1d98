package logger

import (
	"io"
	"sync"
)

// writeOp is a queue entry: either a log line to emit or, when ack is
// non-nil, a flush barrier the caller is waiting on.
type writeOp struct {
	line []byte
	ack  chan error
}

// asyncWriter moves log emission off the handler path. A single goroutine
// owns the sinks (stdout plus the optional bot log file) and writes queued
// lines in arrival order, so handlers never stall on a slow pipe or disk.
type asyncWriter struct {
	ops  chan writeOp
	done chan struct{}
	once sync.Once

	sinks []io.Writer

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer) *asyncWriter {
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	aw := &asyncWriter{
		ops:   make(chan writeOp, 256),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go aw.drain()
	return aw
}

func (w *asyncWriter) drain() {
	defer close(w.done)
	for op := range w.ops {
		if op.ack != nil {
			op.ack <- w.firstErr()
			continue
		}
		w.emit(op.line)
	}
}

func (w *asyncWriter) emit(line []byte) {
	if len(line) == 0 {
		return
	}
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			w.recordErr(err)
			return
		}
	}
}

// Write queues a complete log line. The call blocks only when the queue
// is full, trading latency for not dropping lines under burst.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	w.ops <- writeOp{line: line}
	return nil
}

// Flush blocks until every line queued before the call has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.ops <- writeOp{ack: ack}
	return <-ack
}

// Close drains the queue, stops the writer goroutine and reports the first
// write error seen over the writer's lifetime.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.ops) })
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) recordErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
