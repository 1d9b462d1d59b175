package livepage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	displayScreen  = "1920x1080x24"
	displayTimeout = 3 * time.Second
)

// display is a virtual X server Chrome renders into when running headful
// on a host without a screen.
type display struct {
	name   string
	cmd    *exec.Cmd
	logger *slog.Logger
}

// startDisplay spawns Xvfb on name (":99") and waits until its socket
// accepts clients. A display that is already served is reused as is.
func startDisplay(ctx context.Context, name string, logger *slog.Logger) (*display, error) {
	sock, err := displaySocket(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(sock); err == nil {
		logger.Info("livepage: reusing x display", "display", name)
		return &display{name: name, logger: logger}, nil
	}

	cmd := exec.Command("Xvfb", name, "-screen", "0", displayScreen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("livepage: xvfb %s: %w", name, err)
	}
	d := &display{name: name, cmd: cmd, logger: logger}

	ctx, cancel := context.WithTimeout(ctx, displayTimeout)
	defer cancel()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(sock); err == nil {
			logger.Info("livepage: xvfb ready", "display", name, "pid", cmd.Process.Pid)
			return d, nil
		}
		select {
		case <-ctx.Done():
			d.stop()
			return nil, fmt.Errorf("livepage: xvfb %s not ready: %w", name, ctx.Err())
		case <-tick.C:
		}
	}
}

// env is the variable handed to the Chrome launcher.
func (d *display) env() string { return "DISPLAY=" + d.name }

// stop kills the Xvfb process started by startDisplay. Reused displays
// are left running.
func (d *display) stop() {
	if d == nil || d.cmd == nil || d.cmd.Process == nil {
		return
	}
	_ = d.cmd.Process.Kill()
	_ = d.cmd.Wait()
	d.logger.Info("livepage: xvfb stopped", "display", d.name)
	d.cmd = nil
}

// displaySocket maps ":99" or ":99.0" to the X11 unix socket path.
func displaySocket(name string) (string, error) {
	num, ok := strings.CutPrefix(name, ":")
	if !ok || num == "" {
		return "", fmt.Errorf("livepage: invalid x display %q", name)
	}
	num, _, _ = strings.Cut(num, ".")
	for _, r := range num {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("livepage: invalid x display %q", name)
		}
	}
	return "/tmp/.X11-unix/X" + num, nil
}
