// ABOUTME: Interactive read-dispatch-print loop for the operator console
// ABOUTME: Uses x/term line editing on terminals and a plain scanner otherwise

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// DefaultPrompt is shown before each input line.
const DefaultPrompt = "[console]$ "

// maxLineLength bounds one input line in plain mode.
const maxLineLength = 4096

// lineReader yields one input line per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
}

// plainReader prints the prompt and scans newline-terminated input.
type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
}

func (p *plainReader) ReadLine() (string, error) {
	fmt.Fprint(p.out, p.prompt)
	if p.scanner.Scan() {
		return p.scanner.Text(), nil
	}
	if err := p.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Loop reads lines, dispatches them and prints the outcome.
type Loop struct {
	registry *Registry
	reader   lineReader
	out      io.Writer
	logger   *slog.Logger
}

// NewLoop builds a loop over a plain reader/writer pair. Line editing and
// history are not available in this mode.
func NewLoop(registry *Registry, in io.Reader, out io.Writer, prompt string, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, maxLineLength), maxLineLength)
	return &Loop{
		registry: registry,
		reader:   &plainReader{scanner: scanner, out: out, prompt: prompt},
		out:      out,
		logger:   logger.With("component", "console"),
	}
}

// NewTerminalLoop puts the terminal behind fd into raw mode and builds a
// loop with line editing and history. Call the returned restore function
// to give the terminal back.
func NewTerminalLoop(registry *Registry, fd int, rw io.ReadWriter, prompt string, logger *slog.Logger) (*Loop, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("entering raw mode: %w", err)
	}
	restore := func() error {
		return term.Restore(fd, state)
	}

	t := term.NewTerminal(rw, prompt)
	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}

	return &Loop{
		registry: registry,
		reader:   t,
		out:      t,
		logger:   logger.With("component", "console"),
	}, restore, nil
}

// Output returns the writer the console prints to. On a terminal it
// keeps asynchronous output from tearing the line being edited.
func (l *Loop) Output() io.Writer {
	return l.out
}

type readResult struct {
	line string
	err  error
}

// Run serves the console until input ends (nil) or ctx is cancelled.
// Commands run one at a time on the calling goroutine.
func (l *Loop) Run(ctx context.Context) error {
	next := make(chan struct{})
	results := make(chan readResult)
	done := make(chan struct{})
	defer close(done)

	// Reads block without a deadline, so they run on their own goroutine,
	// one line per request so the prompt never races command output.
	go func() {
		for {
			select {
			case <-next:
			case <-done:
				return
			}
			line, err := l.reader.ReadLine()
			select {
			case results <- readResult{line: line, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	l.logger.Info("console ready")
	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		var res readResult
		select {
		case res = <-results:
		case <-ctx.Done():
			return ctx.Err()
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				l.logger.Info("console input closed")
				return nil
			}
			return fmt.Errorf("reading console: %w", res.err)
		}
		if res.line == "" {
			continue
		}

		l.report(l.registry.Dispatch(ctx, l.out, res.line))
	}
}

func (l *Loop) report(res Result) {
	switch res.Outcome {
	case OutcomeSuccess:
		color.New(color.FgGreen).Fprintln(l.out, "OK")
	case OutcomeFailure:
		color.New(color.FgRed).Fprint(l.out, "Error:")
		fmt.Fprintf(l.out, " %s\n", res.Code)
	case OutcomeNotFound:
		fmt.Fprintln(l.out, "Unrecognized command")
	case OutcomeInvalidArgument:
		fmt.Fprintln(l.out, "Empty command")
	default:
		fmt.Fprintf(l.out, "Internal error: %s\n", res.Outcome)
	}
}
