// ABOUTME: Fixed SIM800 timing and line parameters from the modem datasheet
// ABOUTME: Datasheet minimums are checked at compile time through constant conversions

package modem

import "time"

// Power sequence delays.
const (
	// ResetHold is how long reset stays asserted after power is applied.
	ResetHold = 500 * time.Millisecond
	// KeyPress is how long the power key is held low.
	KeyPress = 1250 * time.Millisecond
	// KeyRelease is the wait after releasing the power key.
	KeyRelease = 2000 * time.Millisecond
)

// Datasheet figures the delays must exceed.
const (
	keyPressMin = 1000 * time.Millisecond
	uartReady   = 2900 * time.Millisecond
)

// A negative constant does not convert to uint, so these fail to compile
// if a delay is shortened below the datasheet figure.
const (
	_ = uint(KeyPress - keyPressMin - 1)
	_ = uint(KeyPress + KeyRelease - uartReady - 1)
)

// Serial line parameters.
const (
	// BaudRate is the modem's fixed UART rate.
	BaudRate = 57600
	// SettleDelay is the wait between opening the port and starting the
	// receiver.
	SettleDelay = 1000 * time.Millisecond
	// DefaultPollInterval bounds each receiver read.
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultBufferSize is the receiver line buffer capacity.
	DefaultBufferSize = 128
)
