// ABOUTME: Digital pin controller interface shared by the sysfs driver and the fake
// ABOUTME: Defines pin levels and the sentinel errors callers match on

package gpio

import (
	"errors"
	"fmt"
)

// ErrInvalidPin indicates a pin number outside the controller's range.
var ErrInvalidPin = errors.New("invalid pin")

// ErrNotConfigured indicates a read or write on a pin that was not set up
// for that direction.
var ErrNotConfigured = errors.New("pin not configured")

// Level is a digital pin level.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// LevelOf maps any nonzero value to High.
func LevelOf(v int) Level {
	if v != 0 {
		return High
	}
	return Low
}

func (l Level) String() string {
	if l == High {
		return "1-HIGH"
	}
	return "0-low"
}

// Controller drives individual digital pins.
type Controller interface {
	// ConfigureOutput sets pin up as a push-pull output.
	ConfigureOutput(pin int) error
	// ConfigureInput sets pin up as an input.
	ConfigureInput(pin int) error
	// Disable releases pin.
	Disable(pin int) error
	Set(pin int, level Level) error
	Get(pin int) (Level, error)
}

func checkPin(pin, maxPin int) error {
	if pin < 0 || pin > maxPin {
		return fmt.Errorf("%w: %d (valid 0..%d)", ErrInvalidPin, pin, maxPin)
	}
	return nil
}
