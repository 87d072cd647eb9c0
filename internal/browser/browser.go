package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher opens a URL in the user's default web browser.
type Launcher interface {
	Open(ctx context.Context, url string) error
}

type LauncherFunc func(ctx context.Context, url string) error

func (f LauncherFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

type command struct {
	name   string
	args   []string
	escape func(string) string
	start  func(*exec.Cmd) error
}

// New returns the launcher for the platform the binary runs on.
func New() Launcher {
	return forOS(runtime.GOOS)
}

func forOS(goos string) *command {
	switch goos {
	case "windows":
		// cmd treats & as a command separator.
		return &command{
			name:   "cmd",
			args:   []string{"/c", "start"},
			escape: func(url string) string { return strings.ReplaceAll(url, "&", "^&") },
		}
	case "darwin":
		return &command{name: "open"}
	default:
		return &command{name: "xdg-open"}
	}
}

// Open starts the browser process without waiting for it to exit.
func (c *command) Open(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	if c.escape != nil {
		url = c.escape(url)
	}

	// The browser must outlive ctx, so it is not bound to it.
	cmd := exec.Command(c.name, append(c.args, url)...)

	start := (*exec.Cmd).Start
	if c.start != nil {
		start = c.start
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("failed to start '%s': %w", c.name, err)
	}
	if cmd.Process != nil {
		go cmd.Wait()
	}
	return nil
}
