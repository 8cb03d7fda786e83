// ABOUTME: The init subcommand writes a config file from interactive answers
// ABOUTME: Every prompt defaults to the TTGO T-Call wiring

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/modemctl/internal/config"
)

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("modemctl configuration setup")
	fmt.Println("============================")
	fmt.Println()

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(getDataPath(), "nvs.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", getConfigPath())

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Serial Configuration ---")
	cfg.Serial.Device = prompt(reader, "Modem serial device", cfg.Serial.Device)

	fmt.Println("\n--- GPIO Configuration ---")
	cfg.GPIO.Driver = prompt(reader, "Pin driver (cdev/sysfs/fake)", cfg.GPIO.Driver)
	switch cfg.GPIO.Driver {
	case "cdev":
		cfg.GPIO.Chip = prompt(reader, "GPIO chip", cfg.GPIO.Chip)
	case "sysfs":
		cfg.GPIO.SysfsRoot = prompt(reader, "sysfs GPIO root", cfg.GPIO.SysfsRoot)
	}
	pins := []struct {
		question string
		dst      *int
	}{
		{"Highest pin number", &cfg.GPIO.MaxPin},
		{"Modem power pin", &cfg.GPIO.Power},
		{"Modem reset pin", &cfg.GPIO.Reset},
		{"Modem power key pin", &cfg.GPIO.PowerKey},
	}
	for _, p := range pins {
		v, err := promptInt(reader, p.question, *p.dst)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	fmt.Println("\n--- Storage Configuration ---")
	cfg.Storage.Path = prompt(reader, "Settings database path", cfg.Storage.Path)
	cfg.Storage.Namespace = prompt(reader, "Settings namespace", cfg.Storage.Namespace)

	fmt.Println("\n--- Console Configuration ---")
	cfg.Console.Enabled = yes(prompt(reader, "Enable console?", "yes"))

	fmt.Println("\n--- Logging Configuration ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	if err := cfg.Save(outputFile); err != nil {
		return err
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("Run 'modemctl serve' to start.")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, question string, defaultVal int) (int, error) {
	answer := prompt(reader, question, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(answer)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", strings.ToLower(question), answer)
	}
	return v, nil
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}
