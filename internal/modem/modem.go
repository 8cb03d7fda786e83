// ABOUTME: Modem facade tying the power sequencer, serial port and line receiver together
// ABOUTME: Also provides the AT console command that writes to the modem line

package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/modemctl/internal/console"
	"github.com/2389/modemctl/internal/gpio"
	"github.com/2389/modemctl/internal/serial"
)

// ErrNotStarted is returned when the serial line is used before Start.
var ErrNotStarted = errors.New("modem not started")

// Port is the full serial line used by the modem.
type Port interface {
	InputPort
	io.Writer
	Close() error
}

// PortOpener opens the modem's serial device at the given rate.
type PortOpener func(device string, baud int) (Port, error)

// Config holds the board wiring and receiver tuning.
type Config struct {
	Device       string
	Pins         Pins
	BufferSize   int
	PollInterval time.Duration
}

// Option customizes a Modem.
type Option func(*Modem)

// WithSleeper replaces real-time waits, for tests.
func WithSleeper(s Sleeper) Option {
	return func(m *Modem) { m.sleeper = s }
}

// WithPortOpener replaces serial.Open.
func WithPortOpener(open PortOpener) Option {
	return func(m *Modem) { m.open = open }
}

// Modem brings the SIM800 up and owns its serial line.
type Modem struct {
	cfg     Config
	seq     *PowerSequencer
	handler LineHandler
	sleeper Sleeper
	open    PortOpener
	logger  *slog.Logger

	mu       sync.Mutex
	port     Port
	receiver *Receiver
}

// New creates a modem driving ctrl. Lines received after Start go to
// handler.
func New(cfg Config, ctrl gpio.Controller, handler LineHandler, logger *slog.Logger, opts ...Option) *Modem {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Modem{
		cfg:     cfg,
		handler: handler,
		sleeper: realSleeper{},
		logger:  logger.With("component", "modem"),
	}
	m.open = func(device string, baud int) (Port, error) {
		tty, err := serial.Open(device, serial.WithBaudRate(baud), serial.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return tty, nil
	}
	for _, opt := range opts {
		opt(m)
	}
	m.seq = NewPowerSequencer(ctrl, cfg.Pins, m.sleeper, logger)
	return m
}

// State returns the power sequence state.
func (m *Modem) State() State {
	return m.seq.State()
}

// Start powers the modem, opens the serial line at BaudRate and waits
// SettleDelay. Call Run afterwards to receive lines.
func (m *Modem) Start(ctx context.Context) error {
	if err := m.seq.BringUp(ctx); err != nil {
		return err
	}

	m.logger.Info("uart init", "device", m.cfg.Device, "baud", BaudRate)
	port, err := m.open(m.cfg.Device, BaudRate)
	if err != nil {
		return fmt.Errorf("opening modem line: %w", err)
	}

	m.logger.Info("modem init")
	if err := m.sleeper.Sleep(ctx, SettleDelay); err != nil {
		port.Close()
		return err
	}

	m.mu.Lock()
	m.port = port
	m.receiver = NewReceiver(port, m.handler, m.cfg.BufferSize, m.cfg.PollInterval, m.logger)
	m.mu.Unlock()
	return nil
}

// Run receives lines until ctx is cancelled.
func (m *Modem) Run(ctx context.Context) error {
	m.mu.Lock()
	r := m.receiver
	m.mu.Unlock()
	if r == nil {
		return ErrNotStarted
	}
	err := r.Run(ctx)
	stats := r.Stats()
	m.logger.Info("receiver totals",
		"lines", stats.Lines,
		"flushes", stats.Flushes,
		"overflows", stats.Overflows,
	)
	return err
}

// Send writes raw bytes to the modem.
func (m *Modem) Send(data []byte) error {
	m.mu.Lock()
	port := m.port
	m.mu.Unlock()
	if port == nil {
		return ErrNotStarted
	}

	n, err := port.Write(data)
	if err != nil {
		m.logger.Error("send error", "length", len(data), "error", err)
		return fmt.Errorf("sending %d bytes: %w", len(data), err)
	}
	if n != len(data) {
		m.logger.Error("send error", "length", len(data), "written", n)
		return fmt.Errorf("sending %d bytes: short write %d", len(data), n)
	}
	return nil
}

// Close closes the serial line if it was opened.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

// ATCommand builds an AT command line: "AT" followed by args joined with
// commas and CRLF.
func ATCommand(args []string) string {
	return "AT" + strings.Join(args, ",") + "\r\n"
}

// ATHandler returns the console command that sends its arguments to the
// modem as an AT command.
func (m *Modem) ATHandler() console.Handler {
	return console.HandlerFunc(func(_ context.Context, _ io.Writer, args []string) error {
		err := m.Send([]byte(ATCommand(args[1:])))
		if errors.Is(err, ErrNotStarted) {
			return fmt.Errorf("%w: %w", console.CodeInvalidState, err)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", console.CodeFail, err)
		}
		return nil
	})
}
