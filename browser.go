package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openBrowser asks the desktop to open u. It returns once the opener has
// started.
func openBrowser(u string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	go func() { _ = cmd.Wait() }()

	return nil
}
