// ABOUTME: Package serial opens Linux serial devices in raw mode via github.com/allbin/go-serial
// ABOUTME: Provides timeout-bounded reads for the modem receiver loop

// Package serial provides a raw serial port on Linux ttys. The line itself
// is opened and configured by github.com/allbin/go-serial; this package
// adds the timeout-bounded read and input flush the modem receiver needs.
//
// Open a port with functional options:
//
//	port, err := serial.Open("/dev/ttyS1", serial.WithBaudRate(57600))
//	if err != nil {
//		return err
//	}
//	defer port.Close()
//
// [TTY.Read] takes a timeout and returns (0, nil) when nothing arrives in
// time, so a reader loop can notice shutdown without closing the port
// underneath itself.
package serial
