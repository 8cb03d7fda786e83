// ABOUTME: Package console provides the operator command registry and interactive loop
// ABOUTME: Handlers return status codes that the loop prints as OK or Error: NAME(code)

// Package console implements the operator-facing command console.
//
// # Registry
//
// A [Registry] maps command names to [Handler] values. Each registry starts
// with a built-in "help" command that lists every registered command and
// its description. Registration rejects empty names, names containing
// whitespace and duplicates.
//
// [Registry.Dispatch] splits a line on whitespace, looks up the first token
// and runs the handler on the caller's goroutine. The result is one of
// four outcomes:
//
//   - OutcomeSuccess: the handler returned nil or CodeOK
//   - OutcomeFailure: the handler returned any other error; the [Code] is
//     extracted with [CodeOf]
//   - OutcomeNotFound: no command has that name
//   - OutcomeInvalidArgument: the line held no tokens
//
// # Loop
//
// [Loop] reads one line at a time, dispatches it and prints the outcome:
//
//	[console]$ pinout 12 1
//	GPIO #12 = 1-HIGH
//	OK
//	[console]$ pinout abc 1
//	Error: INVALID_ARG(258)
//
// On a real terminal, [NewTerminalLoop] provides line editing and history
// through golang.org/x/term. Otherwise [NewLoop] reads plain lines.
package console
