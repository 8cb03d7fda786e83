// ABOUTME: Package gpio drives digital pins through the character device, sysfs or an in-memory fake
// ABOUTME: Every driver satisfies Controller so the modem and commands never see the difference

// Package gpio provides digital pin control.
//
// [Cdev] requests lines from /dev/gpiochipN through go-gpiocdev and holds
// them until released. [Sysfs] uses the kernel's /sys/class/gpio interface: pins are exported
// on first configuration and unexported by [Sysfs.Disable]. [Fake] keeps
// pin state in memory and records every call, which makes power sequences
// easy to assert on.
package gpio
