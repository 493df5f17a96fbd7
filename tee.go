package rotee

import (
	"io"
	"log/slog"
	"sync"

	"github.com/roteeio/rotee/internal/logging"
)

// NewTee creates a writer replicating every chunk to the pass-through sink
// and to the file sink, in that order.
func NewTee(passthrough io.Writer, sink io.Writer, opts ...TeeOption) *Tee {
	t := &Tee{
		out:       passthrough,
		sink:      sink,
		threshold: DefaultFailureThreshold,
	}
	for _, fn := range opts {
		fn(t)
	}
	t.logger = logging.Default(t.logger).With("component", "tee")
	return t
}

// TeeOption lets you change Tee behavior.
type TeeOption func(t *Tee)

// WithFailureThreshold sets how many consecutive file-sink failures are
// tolerated before the file sink is degraded and skipped. A successful file
// write resets the count. v < 1 is treated as 1.
func WithFailureThreshold(v int) TeeOption {
	return func(t *Tee) {
		if v < 1 {
			v = 1
		}
		t.threshold = v
	}
}

// WithTeeLogger sets the logger for degradation diagnostics.
func WithTeeLogger(l *slog.Logger) TeeOption {
	return func(t *Tee) {
		t.logger = l
	}
}

// Tee writes each chunk to the pass-through sink first, then to the file
// sink. The pass-through is the primary observable channel: its failures are
// fatal and returned as *PassThroughError. File-sink failures are recorded
// and, after threshold consecutive misses, silence the file sink for good
// while pass-through carries on.
type Tee struct {
	out  io.Writer
	sink io.Writer

	threshold int
	logger    *slog.Logger

	// mu guards the failure bookkeeping: writes arrive from the pipeline,
	// forced-rotation failures from the control path.
	mu       sync.Mutex
	failures int
	degraded bool
	lastErr  error
}

// Write implements io.Writer. It returns after both sinks were attempted and
// only fails when the pass-through write did.
func (t *Tee) Write(p []byte) (int, error) {
	n, err := t.out.Write(p)
	if err != nil {
		return n, &PassThroughError{Err: err}
	}
	if n < len(p) {
		return n, &PassThroughError{Err: io.ErrShortWrite}
	}
	t.writeFile(p)
	return n, nil
}

// Degraded reports whether the file sink has been given up on.
func (t *Tee) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// LastFileErr returns the most recent file-sink error, or nil.
func (t *Tee) LastFileErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tee) writeFile(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.degraded {
		return
	}
	if _, err := t.sink.Write(p); err != nil {
		t.noteFailure(err)
		return
	}
	t.failures = 0
}

// noteFileError records a file-sink failure that happened outside Write,
// such as a failed forced rotation.
func (t *Tee) noteFileError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.degraded {
		return
	}
	t.noteFailure(err)
}

// noteFailure updates the consecutive-failure count. Caller holds t.mu.
func (t *Tee) noteFailure(err error) {
	t.failures++
	t.lastErr = err
	if t.failures >= t.threshold {
		t.degraded = true
		t.logger.Error("file sink degraded, pass-through continues",
			"consecutive_failures", t.failures, "error", err)
		return
	}
	t.logger.Warn("file sink write failed",
		"consecutive_failures", t.failures, "threshold", t.threshold, "error", err)
}
