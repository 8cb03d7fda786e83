// ABOUTME: Raw 8N1 serial port for the modem line, built on github.com/allbin/go-serial
// ABOUTME: Adds timeout-bounded reads and an input queue flush on top of the library port

//go:build linux

package serial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goserial "github.com/allbin/go-serial"
	"golang.org/x/sys/unix"
)

// ErrPortClosed is returned by operations on a closed port.
var ErrPortClosed = goserial.ErrPortClosed

// ErrUnsupportedBaudRate indicates a rate the line cannot run at.
var ErrUnsupportedBaudRate = errors.New("unsupported baud rate")

// DefaultBaudRate is used when no WithBaudRate option is given.
const DefaultBaudRate = 57600

var baudRates = map[int]bool{
	1200:   true,
	2400:   true,
	4800:   true,
	9600:   true,
	19200:  true,
	38400:  true,
	57600:  true,
	115200: true,
	230400: true,
	460800: true,
	921600: true,
}

// device is the part of the library port the TTY uses.
type device interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

func openDevice(path string, baud int) (device, error) {
	port, err := goserial.Open(path, goserial.WithBaudRate(baud))
	if err != nil {
		return nil, err
	}
	return port, nil
}

type options struct {
	baudRate int
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithBaudRate sets the line rate.
func WithBaudRate(rate int) Option {
	return func(o *options) { o.baudRate = rate }
}

// WithLogger sets the logger used for port lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// TTY is an open serial port. Read and Write may be called from different
// goroutines.
type TTY struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	dev    device
	closed bool
}

// Open opens path as a raw 8N1 line at the requested rate with no flow
// control.
func Open(path string, opts ...Option) (*TTY, error) {
	o := options{baudRate: DefaultBaudRate, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if !baudRates[o.baudRate] {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, o.baudRate)
	}

	dev, err := openDevice(path, o.baudRate)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	t := newTTY(path, dev, o.logger)
	t.logger.Info("serial port opened", "baud", o.baudRate)
	return t, nil
}

func newTTY(path string, dev device, logger *slog.Logger) *TTY {
	if logger == nil {
		logger = slog.Default()
	}
	return &TTY{
		path:   path,
		dev:    dev,
		logger: logger.With("component", "serial", "device", path),
	}
}

// Read waits up to timeout for input and reads what is available into p.
// It returns 0 and a nil error when the timeout expires with nothing to
// read.
func (t *TTY) Read(p []byte, timeout time.Duration) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return 0, ErrPortClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.dev.ReadContext(ctx, p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, ErrPortClosed):
		return n, ErrPortClosed
	case ctx.Err() != nil:
		// Deadline reached; whatever arrived before it is still data.
		return n, nil
	default:
		return n, fmt.Errorf("reading %s: %w", t.path, err)
	}
}

// Write writes p to the line.
func (t *TTY) Write(p []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return 0, ErrPortClosed
	}

	n, err := t.dev.Write(p)
	if err != nil {
		if errors.Is(err, ErrPortClosed) {
			return n, ErrPortClosed
		}
		return n, fmt.Errorf("writing %s: %w", t.path, err)
	}
	return n, nil
}

// FlushInput discards bytes the kernel has received but nobody has read.
// The library port has no flush, so this issues TCFLSH on a second
// descriptor for the same tty; the input queue belongs to the device, not
// the descriptor.
func (t *TTY) FlushInput() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrPortClosed
	}

	fd, err := unix.Open(t.path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("flushing %s: %w", t.path, err)
	}
	defer unix.Close(fd)

	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return fmt.Errorf("flushing %s: %w", t.path, err)
	}
	return nil
}

// Close releases the port. Closing twice returns ErrPortClosed.
func (t *TTY) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrPortClosed
	}
	t.closed = true
	t.logger.Info("serial port closed")
	return t.dev.Close()
}
