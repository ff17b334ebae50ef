package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindChrome(t *testing.T) {
	t.Parallel()

	path := FindChrome("")
	if path == "" {
		t.Skip("Chrome not found on this system")
	}

	_, err := os.Stat(path)
	assert.NoError(t, err, "FindChrome returned path that doesn't exist: %s", path)
}

func TestFindChrome_ExplicitPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/bin/sh", FindChrome("/bin/sh"))
}

func TestFindChrome_ExplicitPath_NotFound(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FindChrome("/nonexistent/chrome"))
}

func TestIsPortOpen_ClosedPort(t *testing.T) {
	t.Parallel()

	assert.False(t, IsPortOpen("localhost", 19999))
}

func TestWaitForPort_Timeout(t *testing.T) {
	t.Parallel()

	err := WaitForPort(context.Background(), "localhost", 19999, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestParseActivePort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantPort int
		wantPath string
		wantErr  bool
	}{
		{name: "port and path", data: "41235\n/devtools/browser/abc-123\n", wantPort: 41235, wantPath: "/devtools/browser/abc-123"},
		{name: "port only", data: "9222", wantPort: 9222},
		{name: "surrounding whitespace", data: "  9333 \r\n/devtools/browser/x ", wantPort: 9333, wantPath: "/devtools/browser/x"},
		{name: "empty", data: "", wantErr: true},
		{name: "not a number", data: "abc\n/devtools", wantErr: true},
		{name: "out of range", data: "70000\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, path, err := ParseActivePort([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestWaitForActivePort_ReadsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, activePortFile), []byte("45678\n/devtools/browser/id\n"), 0o644)
	}()

	port, err := waitForActivePort(context.Background(), dir, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 45678, port)
}

func TestWaitForActivePort_Timeout(t *testing.T) {
	t.Parallel()

	_, err := waitForActivePort(context.Background(), t.TempDir(), 150*time.Millisecond)
	assert.Error(t, err)
}

func TestLaunchOptions_Args(t *testing.T) {
	t.Parallel()

	opts := LaunchOptions{Port: 0, Headless: true, WindowWidth: 1280, WindowHeight: 720, ExtraArgs: []string{"--lang=en-US"}}
	args := opts.args("/tmp/profile")

	assert.Equal(t, "--headless", args[0])
	assert.Contains(t, args, "--remote-debugging-port=0")
	assert.Contains(t, args, "--user-data-dir=/tmp/profile")
	assert.Contains(t, args, "--window-size=1280,720")
	assert.Contains(t, args, "--lang=en-US")
	assert.Equal(t, "about:blank", args[len(args)-1])

	headful := LaunchOptions{Port: 9222}.args("/tmp/p")
	assert.NotContains(t, strings.Join(headful, " "), "--headless")
}

func TestLaunch_InvalidChromePath(t *testing.T) {
	t.Parallel()

	_, err := Launch(context.Background(), LaunchOptions{
		ChromePath: "/nonexistent/chrome",
		Headless:   true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChromeNotFound))
}

func TestLaunchAndStop(t *testing.T) {
	t.Parallel()

	chromePath := FindChrome("")
	if chromePath == "" {
		t.Skip("Chrome not found on this system")
	}

	inst, err := Launch(context.Background(), LaunchOptions{
		ChromePath: chromePath,
		Headless:   true,
	})
	require.NoError(t, err)
	defer inst.Stop()

	assert.NotZero(t, inst.Port, "port should be discovered from DevToolsActivePort")
	assert.True(t, IsPortOpen("localhost", inst.Port), "port should be open after launch")

	dataDir := inst.DataDir
	require.NoError(t, inst.Stop())

	_, err = os.Stat(dataDir)
	assert.True(t, os.IsNotExist(err), "owned data dir should be removed on stop")

	// Second stop is a no-op
	assert.NoError(t, inst.Stop())
}

func TestLaunch_CustomDataDir(t *testing.T) {
	t.Parallel()

	chromePath := FindChrome("")
	if chromePath == "" {
		t.Skip("Chrome not found on this system")
	}

	dataDir := t.TempDir()

	inst, err := Launch(context.Background(), LaunchOptions{
		ChromePath: chromePath,
		Headless:   true,
		DataDir:    dataDir,
	})
	require.NoError(t, err)
	inst.Stop()

	_, err = os.Stat(dataDir)
	assert.NoError(t, err, "user-provided data dir should not be removed on stop")
}
