// ABOUTME: Background loop reading the modem UART and framing bytes into lines
// ABOUTME: Errors and rejected lines flush and resynchronize; an over-long line is dropped whole

package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/2389/modemctl/internal/serial"
)

// InputPort is the receive side of the modem line.
type InputPort interface {
	// Read waits up to timeout and returns (0, nil) when nothing arrived.
	Read(p []byte, timeout time.Duration) (int, error)
	// FlushInput discards bytes queued in the driver.
	FlushInput() error
}

// LineHandler consumes complete lines. Returning an error marks the line
// as unparseable, which makes the receiver discard its buffer.
type LineHandler interface {
	HandleLine(line string) error
}

// LineHandlerFunc adapts a function to LineHandler.
type LineHandlerFunc func(line string) error

func (f LineHandlerFunc) HandleLine(line string) error { return f(line) }

// PrintHandler echoes every line to W as "sim >> <line>".
type PrintHandler struct {
	W io.Writer
}

func (h PrintHandler) HandleLine(line string) error {
	_, err := fmt.Fprintf(h.W, "sim >> %s\n", line)
	return err
}

// ReceiverStats counts receiver events since start.
type ReceiverStats struct {
	Lines     uint64
	Flushes   uint64
	Overflows uint64
}

// Receiver reads the port and hands lines to a LineHandler. Its buffer
// is owned by the goroutine calling Run.
type Receiver struct {
	port    InputPort
	handler LineHandler
	buf     *LineBuffer
	poll    time.Duration
	logger  *slog.Logger

	lines     atomic.Uint64
	flushes   atomic.Uint64
	overflows atomic.Uint64
}

// NewReceiver creates a receiver. Zero bufferSize or poll use the
// defaults.
func NewReceiver(port InputPort, handler LineHandler, bufferSize int, poll time.Duration, logger *slog.Logger) *Receiver {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		port:    port,
		handler: handler,
		buf:     NewLineBuffer(bufferSize),
		poll:    poll,
		logger:  logger.With("component", "modem", "task", "receiver"),
	}
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Lines:     r.lines.Load(),
		Flushes:   r.flushes.Load(),
		Overflows: r.overflows.Load(),
	}
}

// Run reads until ctx is cancelled or the port is closed. It starts from
// a flushed driver queue so stale boot noise is dropped.
func (r *Receiver) Run(ctx context.Context) error {
	r.flush()
	r.logger.Info("receiver started", "buffer", r.buf.Cap(), "poll", r.poll.String())

	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("receiver stopped")
			return err
		}

		n, err := r.port.Read(r.buf.Free(), r.poll)
		if errors.Is(err, serial.ErrPortClosed) {
			return err
		}
		if err != nil {
			r.logger.Error("receiver error, flush data", "error", err)
			r.flush()
			// Failed reads return at once; keep a persistent fault from spinning.
			_ = realSleeper{}.Sleep(ctx, r.poll)
			continue
		}
		if n == 0 {
			continue
		}

		err = r.buf.Commit(n, func(line string) error {
			r.lines.Add(1)
			return r.handler.HandleLine(line)
		})
		if err != nil {
			r.logger.Error("receiver parse error, flush data", "error", err)
			r.flush()
			continue
		}

		if r.buf.Full() {
			r.overflows.Add(1)
			r.logger.Warn("line exceeds buffer, dropping it", "capacity", r.buf.Cap())
			r.flush()
			r.buf.SkipLine()
		}
	}
}

// flush drops buffered bytes and the driver's input queue.
func (r *Receiver) flush() {
	r.flushes.Add(1)
	r.buf.Reset()
	if err := r.port.FlushInput(); err != nil {
		r.logger.Error("flushing input", "error", err)
	}
}
