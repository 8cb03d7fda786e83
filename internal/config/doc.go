// Package config handles configuration loading for modemctl.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Anything the file leaves out keeps the value from [Default], which matches
// a TTGO T-Call style board.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MODEMCTL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/modemctl/modemctl.yaml
//  3. ~/.config/modemctl/modemctl.yaml
//
// Run "modemctl init" to write one interactively.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	serial:
//	  device: "${MODEM_TTY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	receiver:
//	  poll_interval: "250ms"
//
// # Configuration Sections
//
// Serial line:
//
//	serial:
//	  device: "/dev/ttyS1"
//
// Pin driver and modem control lines:
//
//	gpio:
//	  driver: "cdev"         # "sysfs" on old kernels, "fake" for bench runs
//	  chip: "gpiochip0"
//	  sysfs_root: "/sys/class/gpio"
//	  max_pin: 39
//	  power: 23
//	  reset: 5
//	  power_key: 4
//
// Line receiver:
//
//	receiver:
//	  buffer_size: 128
//	  poll_interval: "250ms"
//
// Persistent store:
//
//	storage:
//	  path: "/var/lib/modemctl/nvs.db"
//	  namespace: "STORAGE"
//
// Console:
//
//	console:
//	  enabled: true
//	  prompt: "[console]$ "
//
// Logging:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// # Validation
//
// [Config.Validate] checks required fields, that the three modem pins are
// distinct and within 0..max_pin, and that enumerated fields hold known
// values.
package config
