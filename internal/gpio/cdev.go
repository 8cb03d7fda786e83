// ABOUTME: GPIO controller on the Linux GPIO character device via go-gpiocdev
// ABOUTME: Lines are requested on first configuration and held until Disable or Close

//go:build linux

package gpio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultChip is the first GPIO chip on most boards.
const DefaultChip = "gpiochip0"

// consumer labels the lines this process holds in gpioinfo.
const consumer = "modemctl"

// cdevLine is the part of *gpiocdev.Line the controller uses.
type cdevLine interface {
	Value() (int, error)
	SetValue(value int) error
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

type cdevRequester func(chip string, offset int, options ...gpiocdev.LineReqOption) (cdevLine, error)

func requestLine(chip string, offset int, options ...gpiocdev.LineReqOption) (cdevLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, options...)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Cdev implements Controller on the character device uAPI. Pin numbers
// are line offsets on one chip.
type Cdev struct {
	chip    string
	maxPin  int
	request cdevRequester
	logger  *slog.Logger

	mu    sync.Mutex
	lines map[int]cdevLine
	out   map[int]bool
}

// NewCdev creates a controller for chip. Nothing is opened until a pin is
// configured.
func NewCdev(chip string, maxPin int, logger *slog.Logger) *Cdev {
	return newCdev(chip, maxPin, requestLine, logger)
}

func newCdev(chip string, maxPin int, request cdevRequester, logger *slog.Logger) *Cdev {
	if chip == "" {
		chip = DefaultChip
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cdev{
		chip:    chip,
		maxPin:  maxPin,
		request: request,
		logger:  logger.With("component", "gpio", "driver", "cdev", "chip", chip),
		lines:   make(map[int]cdevLine),
		out:     make(map[int]bool),
	}
}

// ConfigureOutput makes pin an output. A line already held keeps its
// current level; a new line is requested as-is and then switched at the
// level it reads, so the pin never passes through low.
func (c *Cdev) ConfigureOutput(pin int) error {
	if err := checkPin(pin, c.maxPin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		var err error
		line, err = c.request(c.chip, pin, gpiocdev.WithConsumer(consumer), gpiocdev.AsIs)
		if err != nil {
			return fmt.Errorf("requesting pin %d: %w", pin, err)
		}
		c.lines[pin] = line
		c.logger.Debug("line requested", "pin", pin)
	}

	level := 0
	if v, err := line.Value(); err == nil {
		level = v
	}
	if err := line.Reconfigure(gpiocdev.AsOutput(level)); err != nil {
		return fmt.Errorf("setting pin %d as output: %w", pin, err)
	}
	c.out[pin] = true
	return nil
}

// ConfigureInput makes pin an input.
func (c *Cdev) ConfigureInput(pin int) error {
	if err := checkPin(pin, c.maxPin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if line, ok := c.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			return fmt.Errorf("setting pin %d as input: %w", pin, err)
		}
	} else {
		line, err := c.request(c.chip, pin, gpiocdev.WithConsumer(consumer), gpiocdev.AsInput)
		if err != nil {
			return fmt.Errorf("requesting pin %d: %w", pin, err)
		}
		c.lines[pin] = line
		c.logger.Debug("line requested", "pin", pin)
	}
	c.out[pin] = false
	return nil
}

// Disable releases pin. Releasing a pin that is not held is a no-op.
func (c *Cdev) Disable(pin int) error {
	if err := checkPin(pin, c.maxPin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release(pin)
}

// release closes the line for pin. Callers hold mu.
func (c *Cdev) release(pin int) error {
	line, ok := c.lines[pin]
	if !ok {
		return nil
	}
	delete(c.lines, pin)
	delete(c.out, pin)
	if err := line.Close(); err != nil {
		return fmt.Errorf("releasing pin %d: %w", pin, err)
	}
	c.logger.Debug("line released", "pin", pin)
	return nil
}

func (c *Cdev) Set(pin int, level Level) error {
	if err := checkPin(pin, c.maxPin); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok || !c.out[pin] {
		return fmt.Errorf("%w: pin %d", ErrNotConfigured, pin)
	}
	if err := line.SetValue(int(level)); err != nil {
		return fmt.Errorf("setting pin %d: %w", pin, err)
	}
	return nil
}

func (c *Cdev) Get(pin int) (Level, error) {
	if err := checkPin(pin, c.maxPin); err != nil {
		return Low, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		return Low, fmt.Errorf("%w: pin %d", ErrNotConfigured, pin)
	}
	v, err := line.Value()
	if err != nil {
		return Low, fmt.Errorf("reading pin %d: %w", pin, err)
	}
	return LevelOf(v), nil
}

// Close releases every held line.
func (c *Cdev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for pin := range c.lines {
		if err := c.release(pin); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
