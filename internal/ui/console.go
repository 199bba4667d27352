// Package ui is the console surface of the miner: the startup banner and
// the interactive login prompt. It is the only place that writes to
// stdout directly; everything else goes through the logger.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Console writes user-facing output to a terminal.
type Console struct {
	out io.Writer
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// Banner prints the startup banner with the build version.
func (c *Console) Banner(version string) {
	fmt.Fprintf(c.out, `
╔══════════════════════════════════════════════════╗
║            Twitch Drops Miner - Go               ║
╚══════════════════════════════════════════════════╝
  version %s

`, version)
}

// ShowDeviceCode displays the device-code login instructions. Satisfies
// the auth login prompt interface.
func (c *Console) ShowDeviceCode(verificationURI, userCode string) {
	fmt.Fprintf(c.out, "\nTo log in, open %s and enter the code: %s\n\n", verificationURI, userCode)
}
