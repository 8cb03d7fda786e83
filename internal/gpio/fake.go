// ABOUTME: In-memory GPIO controller that records every operation
// ABOUTME: Used by tests and by bench runs configured with the fake driver

package gpio

import (
	"fmt"
	"log/slog"
	"sync"
)

// OpKind names a recorded controller call.
type OpKind string

const (
	OpOutput  OpKind = "output"
	OpInput   OpKind = "input"
	OpDisable OpKind = "disable"
	OpSet     OpKind = "set"
	OpGet     OpKind = "get"
)

// Op is one recorded call. Level is meaningful for OpSet and OpGet.
type Op struct {
	Kind  OpKind
	Pin   int
	Level Level
}

func (o Op) String() string {
	switch o.Kind {
	case OpSet, OpGet:
		return fmt.Sprintf("%s(%d)=%d", o.Kind, o.Pin, o.Level)
	default:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Pin)
	}
}

type direction int

const (
	dirNone direction = iota
	dirOut
	dirIn
)

// Fake implements Controller in memory.
type Fake struct {
	mu      sync.Mutex
	maxPin  int
	dirs    map[int]direction
	levels  map[int]Level
	inputs  map[int]Level
	failing map[int]error
	ops     []Op
	logger  *slog.Logger
}

// NewFake creates a fake controller accepting pins 0..maxPin.
func NewFake(maxPin int, logger *slog.Logger) *Fake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fake{
		maxPin:  maxPin,
		dirs:    make(map[int]direction),
		levels:  make(map[int]Level),
		inputs:  make(map[int]Level),
		failing: make(map[int]error),
		logger:  logger.With("component", "gpio", "driver", "fake"),
	}
}

// SetInput fixes the level Get returns for an input pin.
func (f *Fake) SetInput(pin int, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[pin] = level
}

// FailPin makes every later operation on pin return err.
func (f *Fake) FailPin(pin int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[pin] = err
}

// Ops returns a copy of the recorded operations.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Op(nil), f.ops...)
}

// Level returns the last level driven on an output pin.
func (f *Fake) Level(pin int) Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// check validates pin and returns any injected failure. Callers hold mu.
func (f *Fake) check(pin int) error {
	if err := checkPin(pin, f.maxPin); err != nil {
		return err
	}
	return f.failing[pin]
}

func (f *Fake) configure(pin int, kind OpKind, dir direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(pin); err != nil {
		return err
	}
	// Outputs keep the level they last drove until the pin is released.
	f.dirs[pin] = dir
	if dir == dirNone {
		delete(f.levels, pin)
	}
	f.ops = append(f.ops, Op{Kind: kind, Pin: pin})
	f.logger.Debug("pin configured", "pin", pin, "direction", kind)
	return nil
}

func (f *Fake) ConfigureOutput(pin int) error { return f.configure(pin, OpOutput, dirOut) }
func (f *Fake) ConfigureInput(pin int) error  { return f.configure(pin, OpInput, dirIn) }
func (f *Fake) Disable(pin int) error         { return f.configure(pin, OpDisable, dirNone) }

func (f *Fake) Set(pin int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(pin); err != nil {
		return err
	}
	if f.dirs[pin] != dirOut {
		return fmt.Errorf("%w: pin %d is not an output", ErrNotConfigured, pin)
	}
	f.levels[pin] = level
	f.ops = append(f.ops, Op{Kind: OpSet, Pin: pin, Level: level})
	f.logger.Debug("pin set", "pin", pin, "level", int(level))
	return nil
}

func (f *Fake) Get(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(pin); err != nil {
		return Low, err
	}
	if f.dirs[pin] != dirIn {
		return Low, fmt.Errorf("%w: pin %d is not an input", ErrNotConfigured, pin)
	}
	level := f.inputs[pin]
	f.ops = append(f.ops, Op{Kind: OpGet, Pin: pin, Level: level})
	return level, nil
}
