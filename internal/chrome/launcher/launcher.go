// Package launcher provides Chrome browser discovery, launching, and lifecycle management.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	rodlauncher "github.com/go-rod/rod/lib/launcher"
)

// ErrChromeNotFound is returned when no Chrome or Chromium binary can be located.
var ErrChromeNotFound = errors.New("Chrome not found")

// DefaultStartTimeout bounds how long Launch waits for the debugging endpoint.
const DefaultStartTimeout = 30 * time.Second

// LaunchOptions configures Chrome launching.
type LaunchOptions struct {
	ChromePath   string        // Path to Chrome binary (auto-detected if empty)
	Port         int           // Remote debugging port; 0 lets Chrome pick one
	Headless     bool          // Run in headless mode
	DataDir      string        // User data directory (temp dir created if empty)
	WindowWidth  int           // Initial window size; ignored when zero
	WindowHeight int           //
	StartTimeout time.Duration // Defaults to DefaultStartTimeout
	ExtraArgs    []string      // Appended after the built-in flags
}

// Instance represents a running Chrome instance.
type Instance struct {
	cmd      *exec.Cmd
	Port     int
	PID      int
	Path     string
	DataDir  string
	ownsData bool // true if we created the data dir and should clean it up
}

// knownPaths lists install locations checked after PATH.
func knownPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// FindChrome locates Chrome on the system. If chromePath is non-empty and exists,
// it is returned directly. Otherwise, searches PATH, known install locations, and
// finally the locations rod's launcher knows about (including browsers it downloaded).
func FindChrome(chromePath string) string {
	if chromePath != "" {
		if _, err := os.Stat(chromePath); err == nil {
			return chromePath
		}
		return ""
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range knownPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if path, ok := rodlauncher.LookPath(); ok {
		return path
	}

	return ""
}

// Download fetches a Chromium build into rod's cache directory and returns its path.
func Download(ctx context.Context) (string, error) {
	b := rodlauncher.NewBrowser()
	b.Context = ctx
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("downloading Chromium: %w", err)
	}
	return path, nil
}

// IsPortOpen checks if a TCP port is accepting connections.
func IsPortOpen(host string, port int) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForPort waits for a TCP port to become available.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s", net.JoinHostPort(host, strconv.Itoa(port)))
		case <-ticker.C:
			if IsPortOpen(host, port) {
				return nil
			}
		}
	}
}

// activePortFile is written by Chrome into the user data dir once the
// debugging endpoint listens. The first line is the port.
const activePortFile = "DevToolsActivePort"

// ParseActivePort parses the contents of a DevToolsActivePort file into the
// port number and the browser WebSocket path.
func ParseActivePort(data []byte) (int, string, error) {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) == 0 || len(bytes.TrimSpace(lines[0])) == 0 {
		return 0, "", fmt.Errorf("empty %s file", activePortFile)
	}

	port, err := strconv.Atoi(string(bytes.TrimSpace(lines[0])))
	if err != nil || port <= 0 || port > 65535 {
		return 0, "", fmt.Errorf("invalid port %q in %s", lines[0], activePortFile)
	}

	var path string
	if len(lines) > 1 {
		path = string(bytes.TrimSpace(lines[1]))
	}
	return port, path, nil
}

// waitForActivePort polls the data dir until Chrome reports its debugging port.
func waitForActivePort(ctx context.Context, dataDir string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	file := filepath.Join(dataDir, activePortFile)
	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("timeout waiting for %s", file)
		case <-ticker.C:
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			// Chrome may still be writing the file
			if port, _, err := ParseActivePort(data); err == nil {
				return port, nil
			}
		}
	}
}

// args builds Chrome's command line for opts.
func (opts LaunchOptions) args(dataDir string) []string {
	args := []string{
		"--disable-gpu",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-extensions",
		"--disable-background-networking",
		"--disable-sync",
		"--disable-translate",
		"--mute-audio",
		"--no-first-run",
		"--disable-default-apps",
		"--hide-scrollbars",
		fmt.Sprintf("--remote-debugging-port=%d", opts.Port),
		fmt.Sprintf("--user-data-dir=%s", dataDir),
	}
	if opts.Headless {
		args = append([]string{"--headless"}, args...)
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.WindowWidth, opts.WindowHeight))
	}
	args = append(args, opts.ExtraArgs...)
	return append(args, "about:blank")
}

// Launch starts a Chrome instance with the given options and waits until its
// debugging endpoint accepts connections.
func Launch(ctx context.Context, opts LaunchOptions) (*Instance, error) {
	chromePath := FindChrome(opts.ChromePath)
	if chromePath == "" {
		if opts.ChromePath != "" {
			return nil, fmt.Errorf("%w at %s", ErrChromeNotFound, opts.ChromePath)
		}
		return nil, ErrChromeNotFound
	}

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}

	ownsData := false
	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = os.MkdirTemp("", "velvetcheck-chrome-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		ownsData = true
	} else {
		// A stale file from an earlier run would report the wrong port
		os.Remove(filepath.Join(dataDir, activePortFile))
	}

	cmd := exec.Command(chromePath, opts.args(dataDir)...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if ownsData {
			os.RemoveAll(dataDir)
		}
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}

	inst := &Instance{
		cmd:      cmd,
		Port:     opts.Port,
		PID:      cmd.Process.Pid,
		Path:     chromePath,
		DataDir:  dataDir,
		ownsData: ownsData,
	}

	if inst.Port == 0 {
		port, err := waitForActivePort(ctx, dataDir, timeout)
		if err != nil {
			inst.Stop()
			return nil, fmt.Errorf("Chrome failed to start: %w", err)
		}
		inst.Port = port
	}

	if err := WaitForPort(ctx, "localhost", inst.Port, timeout); err != nil {
		inst.Stop()
		return nil, fmt.Errorf("Chrome failed to start: %w", err)
	}

	return inst, nil
}

// Stop terminates the Chrome instance and cleans up. Safe to call more than once.
func (inst *Instance) Stop() error {
	if inst.cmd != nil && inst.cmd.Process != nil {
		inst.cmd.Process.Kill()
		inst.cmd.Wait()

		// Kill orphaned child processes
		if inst.DataDir != "" && runtime.GOOS != "windows" {
			killCmd := exec.Command("pkill", "-9", "-f", inst.DataDir)
			killCmd.Run()
		}
		inst.cmd = nil
	}
	if inst.ownsData && inst.DataDir != "" {
		time.Sleep(100 * time.Millisecond)
		if err := os.RemoveAll(inst.DataDir); err != nil {
			return fmt.Errorf("removing data dir: %w", err)
		}
		inst.DataDir = ""
	}
	return nil
}
