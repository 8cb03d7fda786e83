// ABOUTME: Storage pack with nvget, nvset and nverase for inspecting the persistent store
// ABOUTME: Values are typed as i32, u32, float or str to match the stored layout

package builtins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/2389/modemctl/internal/console"
	"github.com/2389/modemctl/internal/nvs"
	"github.com/2389/modemctl/internal/storage"
)

// Settings is the typed store the storage commands work on.
type Settings interface {
	GetInt32(ctx context.Context, name string, def int32) int32
	SetInt32(ctx context.Context, name string, v int32) error
	GetUint32(ctx context.Context, name string, def uint32) uint32
	SetUint32(ctx context.Context, name string, v uint32) error
	GetFloat32(ctx context.Context, name string, def float32) float32
	SetFloat32(ctx context.Context, name string, v float32) error
	GetString(ctx context.Context, name string, def string) string
	SetString(ctx context.Context, name, v string) error
	Erase(ctx context.Context, name string) error
	EraseAll(ctx context.Context) error
}

var _ Settings = (*storage.Store)(nil)

// StoragePack creates the nvget, nvset and nverase commands.
func StoragePack(s Settings) *Pack {
	h := &storageHandlers{store: s}
	return &Pack{
		ID: "builtin:storage",
		Commands: []Command{
			{Name: "nvget", Description: "Read a stored value: nvget <name> <i32|u32|float|str>", Handler: h.Get},
			{Name: "nvset", Description: "Store a value: nvset <name> <i32|u32|float|str> <value>", Handler: h.Set},
			{Name: "nverase", Description: "Remove a value, or everything: nverase <name|--all>", Handler: h.Erase},
		},
	}
}

type storageHandlers struct {
	store Settings
}

// Get prints the stored value, or the zero value when the key is unset.
func (h *storageHandlers) Get(ctx context.Context, w io.Writer, args []string) error {
	if err := argCount(args, 3); err != nil {
		return err
	}
	name, typ := args[1], args[2]

	switch typ {
	case "i32":
		printf(w, "%s = %d\n", name, h.store.GetInt32(ctx, name, 0))
	case "u32":
		printf(w, "%s = %d\n", name, h.store.GetUint32(ctx, name, 0))
	case "float":
		printf(w, "%s = %g\n", name, h.store.GetFloat32(ctx, name, 0))
	case "str":
		printf(w, "%s = %q\n", name, h.store.GetString(ctx, name, ""))
	default:
		return unknownType(typ)
	}
	return nil
}

// Set parses the value for the given type and stores it. For str the
// rest of the line is the value.
func (h *storageHandlers) Set(ctx context.Context, _ io.Writer, args []string) error {
	if len(args) < 4 {
		return argCount(args, 4)
	}
	name, typ := args[1], args[2]
	if typ != "str" {
		if err := argCount(args, 4); err != nil {
			return err
		}
	}
	raw := args[3]

	var err error
	switch typ {
	case "i32":
		var v int64
		if v, err = strconv.ParseInt(raw, 10, 32); err != nil {
			return badValue(typ, raw)
		}
		err = h.store.SetInt32(ctx, name, int32(v))
	case "u32":
		var v uint64
		if v, err = strconv.ParseUint(raw, 10, 32); err != nil {
			return badValue(typ, raw)
		}
		err = h.store.SetUint32(ctx, name, uint32(v))
	case "float":
		var v float64
		if v, err = strconv.ParseFloat(raw, 32); err != nil {
			return badValue(typ, raw)
		}
		err = h.store.SetFloat32(ctx, name, float32(v))
	case "str":
		err = h.store.SetString(ctx, name, strings.Join(args[3:], " "))
	default:
		return unknownType(typ)
	}
	return storageFailure(err)
}

// Erase removes one stored value, or every value with --all.
func (h *storageHandlers) Erase(ctx context.Context, w io.Writer, args []string) error {
	if err := argCount(args, 2); err != nil {
		return err
	}
	if args[1] == "--all" {
		if err := storageFailure(h.store.EraseAll(ctx)); err != nil {
			return err
		}
		printf(w, "all values erased\n")
		return nil
	}

	err := h.store.Erase(ctx, args[1])
	if errors.Is(err, nvs.ErrNotFound) {
		return fmt.Errorf("%w: %q is not set", console.CodeNotFound, args[1])
	}
	return storageFailure(err)
}

func unknownType(typ string) error {
	return fmt.Errorf("%w: unknown type %q (want i32, u32, float or str)", console.CodeInvalidArg, typ)
}

func badValue(typ, raw string) error {
	return fmt.Errorf("%w: %q is not a valid %s", console.CodeInvalidArg, raw, typ)
}

func storageFailure(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%w: %w", console.CodeInvalidState, err)
	case errors.Is(err, nvs.ErrInvalidName), errors.Is(err, nvs.ErrValueTooLong):
		return fmt.Errorf("%w: %w", console.CodeInvalidSize, err)
	default:
		return fmt.Errorf("%w: %w", console.CodeFail, err)
	}
}
