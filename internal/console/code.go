// ABOUTME: Numeric status codes surfaced by console command handlers
// ABOUTME: Code doubles as an error so handlers can return or wrap it directly

package console

import (
	"errors"
	"fmt"
)

// Code is a handler status. 0 means success; anything else is a failure
// reported to the operator by name and number.
type Code int

// Status codes. Values match the device status numbers operators already
// know from the serial console.
const (
	CodeOK           Code = 0
	CodeFail         Code = -1
	CodeNoMem        Code = 0x101
	CodeInvalidArg   Code = 0x102
	CodeInvalidState Code = 0x103
	CodeInvalidSize  Code = 0x104
	CodeNotFound     Code = 0x105
	CodeNotSupported Code = 0x106
	CodeTimeout      Code = 0x107
)

var codeNames = map[Code]string{
	CodeOK:           "OK",
	CodeFail:         "FAIL",
	CodeNoMem:        "NO_MEM",
	CodeInvalidArg:   "INVALID_ARG",
	CodeInvalidState: "INVALID_STATE",
	CodeInvalidSize:  "INVALID_SIZE",
	CodeNotFound:     "NOT_FOUND",
	CodeNotSupported: "NOT_SUPPORTED",
	CodeTimeout:      "TIMEOUT",
}

// Name returns the symbolic name, or "UNKNOWN" for unlisted codes.
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// String formats the code as NAME(number).
func (c Code) String() string {
	return fmt.Sprintf("%s(%d)", c.Name(), int(c))
}

// Error makes Code usable as an error value.
func (c Code) Error() string {
	return c.String()
}

// CodeOf extracts the status carried by err: CodeOK for nil, the wrapped
// Code if there is one, CodeFail otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	return CodeFail
}
