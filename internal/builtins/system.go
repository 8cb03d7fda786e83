// ABOUTME: System pack with the reboot command
// ABOUTME: Reboot re-executes the daemon binary in place and only returns on failure

package builtins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/2389/modemctl/internal/console"
)

// ErrRebootFailed means the process was already shut down for a reboot
// but could not be replaced. The caller must exit.
var ErrRebootFailed = errors.New("reboot failed after shutdown")

// Rebooter restarts the process. It returns only if the restart failed.
type Rebooter func() error

// ExecSelf replaces the running process with a fresh copy of the same
// binary and arguments. prepare runs first so the caller can restore the
// terminal and release storage. Errors before prepare leave the process
// intact; an error after it wraps ErrRebootFailed.
func ExecSelf(prepare func()) Rebooter {
	return execSelf(prepare, os.Executable, unix.Exec)
}

func execSelf(prepare func(), locate func() (string, error), exec func(argv0 string, argv, envv []string) error) Rebooter {
	return func() error {
		exe, err := locate()
		if err != nil {
			return fmt.Errorf("locating executable: %w", err)
		}
		info, err := os.Stat(exe)
		if err != nil {
			return fmt.Errorf("checking executable: %w", err)
		}
		if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("checking executable: %s is not an executable file", exe)
		}

		if prepare != nil {
			prepare()
		}
		err = exec(exe, os.Args, os.Environ())
		return fmt.Errorf("%w: exec %s: %w", ErrRebootFailed, exe, err)
	}
}

// SystemPack creates the reboot command.
func SystemPack(reboot Rebooter) *Pack {
	return &Pack{
		ID: "builtin:system",
		Commands: []Command{
			{
				Name:        "reboot",
				Description: "Software reset of the chip",
				Handler: func(_ context.Context, w io.Writer, _ []string) error {
					printf(w, "Rebooting...\n")
					if err := reboot(); err != nil {
						return fmt.Errorf("%w: reboot: %w", console.CodeFail, err)
					}
					return nil
				},
			},
		},
	}
}
