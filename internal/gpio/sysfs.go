// ABOUTME: GPIO controller backed by the Linux sysfs interface under /sys/class/gpio
// ABOUTME: Exports pins on demand and drives direction and value attribute files

package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// exportWait bounds how long udev may take to create gpioN after export.
const exportWait = 500 * time.Millisecond

// Sysfs implements Controller on top of sysfs attribute files.
type Sysfs struct {
	root   string
	maxPin int
	logger *slog.Logger
}

// NewSysfs creates a sysfs controller. Pins outside 0..maxPin are rejected
// before any file is touched.
func NewSysfs(root string, maxPin int, logger *slog.Logger) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sysfs{
		root:   root,
		maxPin: maxPin,
		logger: logger.With("component", "gpio"),
	}
}

func (s *Sysfs) pinDir(pin int) string {
	return filepath.Join(s.root, "gpio"+strconv.Itoa(pin))
}

// export makes gpioN appear, waiting for its direction attribute.
func (s *Sysfs) export(pin int) error {
	dir := s.pinDir(pin)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	if err := s.writeAttr(filepath.Join(s.root, "export"), strconv.Itoa(pin)); err != nil {
		return fmt.Errorf("exporting pin %d: %w", pin, err)
	}
	s.logger.Debug("pin exported", "pin", pin)

	deadline := time.Now().Add(exportWait)
	for {
		if _, err := os.Stat(filepath.Join(dir, "direction")); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("exporting pin %d: %s did not appear", pin, dir)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *Sysfs) writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Sysfs) configure(pin int, direction string) error {
	if err := checkPin(pin, s.maxPin); err != nil {
		return err
	}
	if err := s.export(pin); err != nil {
		return err
	}
	if err := s.writeAttr(filepath.Join(s.pinDir(pin), "direction"), direction); err != nil {
		return fmt.Errorf("setting pin %d direction %s: %w", pin, direction, err)
	}
	return nil
}

// ConfigureOutput exports pin and makes it an output at the level it
// reads now. The direction file takes "high" or "low" so the switch and
// the initial level are one write.
func (s *Sysfs) ConfigureOutput(pin int) error {
	if err := checkPin(pin, s.maxPin); err != nil {
		return err
	}
	if err := s.export(pin); err != nil {
		return err
	}
	direction := "low"
	if level, err := s.Get(pin); err == nil && level == High {
		direction = "high"
	}
	return s.configure(pin, direction)
}

// ConfigureInput exports pin and sets its direction to in.
func (s *Sysfs) ConfigureInput(pin int) error {
	return s.configure(pin, "in")
}

// Disable unexports pin. Disabling a pin that was never exported is a no-op.
func (s *Sysfs) Disable(pin int) error {
	if err := checkPin(pin, s.maxPin); err != nil {
		return err
	}
	if _, err := os.Stat(s.pinDir(pin)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := s.writeAttr(filepath.Join(s.root, "unexport"), strconv.Itoa(pin)); err != nil {
		return fmt.Errorf("unexporting pin %d: %w", pin, err)
	}
	s.logger.Debug("pin unexported", "pin", pin)
	return nil
}

func (s *Sysfs) Set(pin int, level Level) error {
	if err := checkPin(pin, s.maxPin); err != nil {
		return err
	}
	err := s.writeAttr(filepath.Join(s.pinDir(pin), "value"), strconv.Itoa(int(level)))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: pin %d", ErrNotConfigured, pin)
	}
	if err != nil {
		return fmt.Errorf("setting pin %d: %w", pin, err)
	}
	return nil
}

func (s *Sysfs) Get(pin int) (Level, error) {
	if err := checkPin(pin, s.maxPin); err != nil {
		return Low, err
	}
	data, err := os.ReadFile(filepath.Join(s.pinDir(pin), "value"))
	if errors.Is(err, os.ErrNotExist) {
		return Low, fmt.Errorf("%w: pin %d", ErrNotConfigured, pin)
	}
	if err != nil {
		return Low, fmt.Errorf("reading pin %d: %w", pin, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Low, fmt.Errorf("reading pin %d: unexpected value %q", pin, data)
	}
	return LevelOf(v), nil
}
