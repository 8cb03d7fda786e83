// ABOUTME: Command packs grouping related console commands for registration
// ABOUTME: Register adds every command of every pack or reports the first collision

package builtins

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/2389/modemctl/internal/console"
	"github.com/2389/modemctl/internal/gpio"
)

// Command is one console command provided by a pack.
type Command struct {
	Name        string
	Description string
	Handler     console.HandlerFunc
}

// Pack is a named group of commands.
type Pack struct {
	ID       string
	Commands []Command
}

// Register adds every command of packs to reg.
func Register(reg *console.Registry, packs ...*Pack) error {
	for _, p := range packs {
		for _, cmd := range p.Commands {
			if err := reg.Register(cmd.Name, cmd.Description, cmd.Handler); err != nil {
				return fmt.Errorf("registering %s from %s: %w", cmd.Name, p.ID, err)
			}
		}
	}
	return nil
}

// argCount rejects a line with the wrong number of tokens, command name
// included.
func argCount(args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", console.CodeInvalidArg, args[0], want-1, len(args)-1)
	}
	return nil
}

// parseInt parses a whole token as a decimal integer.
func parseInt(what, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q must be a number", console.CodeInvalidArg, what, s)
	}
	return v, nil
}

// gpioFailure maps controller errors to console codes.
func gpioFailure(err error) error {
	switch {
	case errors.Is(err, gpio.ErrInvalidPin):
		return fmt.Errorf("%w: %w", console.CodeInvalidArg, err)
	case errors.Is(err, gpio.ErrNotConfigured):
		return fmt.Errorf("%w: %w", console.CodeInvalidState, err)
	default:
		return fmt.Errorf("%w: %w", console.CodeFail, err)
	}
}

// printf writes operator output; a broken console is not a command failure.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
