// ABOUTME: Package modem powers up a SIM800-class modem and frames its serial output
// ABOUTME: Holds the power sequencer, line receiver and the AT command

// Package modem drives an external SIM800-class cellular modem.
//
// # Power-up
//
// [PowerSequencer.BringUp] toggles three GPIO lines in the order the
// datasheet requires, waiting fixed delays between steps. The delays are
// constants; their datasheet minimums are checked when the package
// compiles. A failing line operation returns a [*StepError] and the
// sequence is never retried.
//
// # Receiving
//
// [Receiver] reads the UART into a fixed [LineBuffer]. CR or LF ends a
// line, empty lines are dropped and each remaining line goes to a
// [LineHandler]. The buffer is discarded and the driver queue flushed
// when:
//
//   - a read fails
//   - the handler rejects a line
//   - a line fills the whole buffer without a terminator
//
// # Facade
//
// [Modem] runs the power sequence, opens the line at 57600 baud, waits for
// the modem to settle and then hands out [Modem.Run] for the receive loop
// and [Modem.ATHandler] for the console.
package modem
