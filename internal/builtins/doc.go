// ABOUTME: Package builtins provides the board's built-in console commands
// ABOUTME: Commands are grouped into packs and registered on a console.Registry

// Package builtins provides the built-in console commands.
//
// # Command Packs
//
// Board Pack (builtin:board):
//
//   - pinout <pin> <0|1>: configure a pin as output and drive it
//   - pinin <pin>: configure a pin as input and print its level
//   - pinoff <pin>: deconfigure a pin
//
// System Pack (builtin:system):
//
//   - reboot: restart the daemon in place
//
// Storage Pack (builtin:storage):
//
//   - nvget <name> <type>: print a stored value
//   - nvset <name> <type> <value>: store a value
//
// Types are i32, u32, float and str. Floats live under "<name>-float".
//
// # Registration
//
//	builtins.Register(registry,
//		builtins.BoardPack(ctrl),
//		builtins.SystemPack(builtins.ExecSelf(cleanup)),
//		builtins.StoragePack(store),
//	)
//
// # Errors
//
// Handlers return console codes. Malformed numbers and wrong argument
// counts report INVALID_ARG and never reach the hardware or the store.
package builtins
