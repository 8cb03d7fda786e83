// ABOUTME: Command registry mapping names to handlers and dispatching input lines
// ABOUTME: Normalizes handler results into Success, Failure, NotFound, or InvalidArgument

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// ErrInvalidName indicates an empty command name or one containing whitespace.
var ErrInvalidName = errors.New("invalid command name")

// ErrDuplicateCommand indicates a command with the same name is already registered.
var ErrDuplicateCommand = errors.New("command already registered")

// ErrNilHandler indicates Register was called without a handler.
var ErrNilHandler = errors.New("nil handler")

// defaultDescription is shown by help for commands registered without one.
const defaultDescription = "No description"

// Handler runs one command. args holds the whole tokenized line, so args[0]
// is the command name. Output for the operator goes to w.
//
// A nil error is success. Returning a Code (or an error wrapping one)
// reports that status; any other error reports CodeFail.
type Handler interface {
	Run(ctx context.Context, w io.Writer, args []string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, w io.Writer, args []string) error

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, w io.Writer, args []string) error {
	return f(ctx, w, args)
}

// Command is one registry entry.
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Outcome classifies a dispatched line.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeNotFound
	OutcomeInvalidArgument
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Result is the normalized outcome of Dispatch.
type Result struct {
	Outcome Outcome
	Command string
	Code    Code  // set for OutcomeFailure
	Err     error // handler error, set for OutcomeFailure
}

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	logger   *slog.Logger
}

// NewRegistry creates a registry with the built-in help command.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		commands: make(map[string]*Command),
		logger:   logger.With("component", "console"),
	}
	// Cannot fail on an empty registry.
	_ = r.Register("help", "Print the list of registered commands", HandlerFunc(r.help))
	return r
}

// Register adds a command. Names must be non-empty, free of whitespace and
// unique within the registry.
func (r *Registry) Register(name, description string, h Handler) error {
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if h == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, name)
	}
	if description == "" {
		description = defaultDescription
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, name)
	}
	r.commands[name] = &Command{
		Name:        name,
		Description: description,
		Handler:     h,
	}

	r.logger.Debug("command registered", "command", name)
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns all commands sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	slices.SortFunc(cmds, func(a, b *Command) int {
		return strings.Compare(a.Name, b.Name)
	})
	return cmds
}

// Dispatch tokenizes line on whitespace and runs the matching handler
// synchronously on the calling goroutine.
func (r *Registry) Dispatch(ctx context.Context, w io.Writer, line string) Result {
	args := strings.Fields(line)
	if len(args) == 0 {
		return Result{Outcome: OutcomeInvalidArgument}
	}

	cmd, ok := r.Lookup(args[0])
	if !ok {
		return Result{Outcome: OutcomeNotFound, Command: args[0]}
	}

	err := cmd.Handler.Run(ctx, w, args)
	code := CodeOf(err)
	if code == CodeOK {
		return Result{Outcome: OutcomeSuccess, Command: cmd.Name}
	}

	r.logger.Debug("command failed", "command", cmd.Name, "code", code.String(), "error", err)
	return Result{
		Outcome: OutcomeFailure,
		Command: cmd.Name,
		Code:    code,
		Err:     err,
	}
}

func (r *Registry) help(_ context.Context, w io.Writer, _ []string) error {
	for _, cmd := range r.Commands() {
		fmt.Fprintf(w, "%s\n  %s\n\n", cmd.Name, cmd.Description)
	}
	return nil
}
