package rotee

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roteeio/rotee/internal/logging"
)

// State is the driver lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FileSink is the rotating destination managed by the driver.
type FileSink interface {
	io.WriteCloser
	Rotate() error
}

// DriverOption lets you change Driver behavior.
type DriverOption func(d *Driver)

// WithChunkSize sets the input read buffer size. Each read of up to v bytes
// becomes one chunk written atomically to both sinks.
func WithChunkSize(v int) DriverOption {
	return func(d *Driver) {
		if v > 0 {
			d.chunkSize = v
		}
	}
}

// WithDriverLogger sets the logger for lifecycle diagnostics.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver wires the input stream to the tee and the sink it rotates.
// The sink must already be open; the tee must write to the same sink.
func NewDriver(in io.Reader, tee *Tee, sink FileSink, opts ...DriverOption) *Driver {
	d := &Driver{
		in:        in,
		tee:       tee,
		sink:      sink,
		chunkSize: DefaultChunkSize,
		rotateCh:  make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
		pipeDone:  make(chan struct{}),
	}
	for _, fn := range opts {
		fn(d)
	}
	d.logger = logging.Default(d.logger).With("component", "driver")
	return d
}

// Driver runs the pipeline: it pulls chunks from the input stream, feeds the
// tee, and reacts to rotate-now and shutdown requests delivered between
// chunk boundaries.
type Driver struct {
	in   io.Reader
	tee  *Tee
	sink FileSink

	chunkSize int
	logger    *slog.Logger

	rotateCh chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once
	state    atomic.Int32

	// inFlight counts chunks the pump has read but the pipeline has not yet
	// received. pipeDone, closed when the pipeline exits, releases a pump
	// stuck offering its last chunk.
	inFlight atomic.Int64
	pipeDone chan struct{}
}

// chunk is one unit handed from the input pump to the pipeline. data and err
// can both be set: a read may return bytes together with EOF.
type chunk struct {
	data []byte
	err  error
}

// Rotate requests a rotation of the file sink. Requests arriving while one
// is already pending coalesce into a single rotation.
func (d *Driver) Rotate() {
	select {
	case d.rotateCh <- struct{}{}:
	default:
	}
}

// Shutdown requests a graceful drain: the chunk currently in flight is
// written to both sinks, then the sink is flushed and closed. Safe to call
// more than once.
func (d *Driver) Shutdown() {
	d.doneOnce.Do(func() { close(d.doneCh) })
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

// Run drives the pipeline until end of input, a shutdown request, or a fatal
// error. It returns nil on clean end of input or shutdown. A degraded file
// sink is reported through the logger and Tee.Degraded, not through the
// return value; only pass-through and input failures are fatal.
func (d *Driver) Run(ctx context.Context) error {
	d.setState(StateStarting)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunk)
	go d.pump(ctx, chunks)

	d.setState(StateRunning)
	d.logger.Info("pipeline running", "chunk_size", d.chunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		defer close(d.pipeDone)
		return d.pipeline(gctx, chunks)
	})
	g.Go(func() error {
		d.control(gctx)
		cancel()
		return nil
	})
	err := g.Wait()

	d.setState(StateDraining)
	if cerr := d.sink.Close(); cerr != nil {
		d.logger.Warn("closing file sink", "error", cerr)
		if err == nil {
			err = cerr
		}
	}
	d.setState(StateStopped)
	if d.tee.Degraded() {
		d.logger.Warn("pipeline stopped with file sink degraded", "error", d.tee.LastFileErr())
	}
	d.logger.Info("pipeline stopped", "error", err)
	return err
}

// pump reads the input stream chunk by chunk and hands each over the
// unbuffered channel, so at most one chunk is ever in flight ahead of the
// writers. Each chunk gets its own copy of the buffer: ownership transfers
// on send.
//
// A chunk that has left the input stream is owed to the pipeline even when
// cancellation races the handoff: the pump keeps offering it until the
// pipeline has exited.
func (d *Driver) pump(ctx context.Context, chunks chan<- chunk) {
	buf := make([]byte, d.chunkSize)
	for {
		n, err := d.in.Read(buf)
		c := chunk{err: err}
		if n > 0 {
			c.data = make([]byte, n)
			copy(c.data, buf[:n])
		}
		d.inFlight.Add(1)
		select {
		case chunks <- c:
		case <-ctx.Done():
			select {
			case chunks <- c:
			case <-d.pipeDone:
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// pipeline writes chunks to the tee until end of input or cancellation.
// Cancellation is cooperative: a chunk already read from input is still
// written before the drain.
func (d *Driver) pipeline(ctx context.Context, chunks <-chan chunk) error {
	for {
		select {
		case <-ctx.Done():
			d.setState(StateDraining)
			// The pump may hold a chunk already off the input stream;
			// write it rather than drop it. The pump offers it until
			// pipeDone closes, so this receive cannot hang.
			if d.inFlight.Load() > 0 {
				c := <-chunks
				d.inFlight.Add(-1)
				if len(c.data) > 0 {
					if _, err := d.tee.Write(c.data); err != nil {
						return err
					}
				}
			}
			return nil
		case c := <-chunks:
			d.inFlight.Add(-1)
			if len(c.data) > 0 {
				if _, err := d.tee.Write(c.data); err != nil {
					return err
				}
			}
			if c.err == io.EOF {
				d.setState(StateDraining)
				d.logger.Info("end of input")
				return nil
			}
			if c.err != nil {
				return fmt.Errorf("rotee: read input: %w", c.err)
			}
		}
	}
}

// control consumes rotate and shutdown requests. Rotation goes through the
// sink's own serialization, so it never tears an in-flight write.
func (d *Driver) control(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.setState(StateDraining)
			return
		case <-d.doneCh:
			d.setState(StateDraining)
			d.logger.Info("shutdown requested, draining")
			return
		case <-d.rotateCh:
			d.logger.Info("rotation requested")
			if err := d.sink.Rotate(); err != nil {
				d.logger.Error("forced rotation failed", "error", err)
				d.tee.noteFileError(err)
			}
		}
	}
}
