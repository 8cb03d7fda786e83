// ABOUTME: Entry point for the modemctl daemon
// ABOUTME: Dispatches the serve and init subcommands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _                     _   _
  _ __ ___   ___   __| | ___ _ __ ___   ___| |_| |
 | '_ ' _ \ / _ \ / _' |/ _ \ '_ ' _ \ / __| __| |
 | | | | | | (_) | (_| |  __/ | | | | | (__| |_| |
 |_| |_| |_|\___/ \__,_|\___|_| |_| |_|\___|\__|_|
`

// getConfigPath returns the path to the modemctl config file.
// Priority: MODEMCTL_CONFIG env var > XDG_CONFIG_HOME/modemctl/modemctl.yaml > ~/.config/modemctl/modemctl.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MODEMCTL_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "modemctl.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "modemctl", "modemctl.yaml")
}

// getDataPath returns the path to the modemctl data directory.
// Priority: XDG_DATA_HOME/modemctl > ~/.local/share/modemctl
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "modemctl")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: modemctl <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Power up the modem and run the receiver and console")
		fmt.Println("  init     Create a new config file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
