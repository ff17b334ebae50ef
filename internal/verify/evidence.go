package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomyan/velvetcheck/internal/chrome"
)

// Screenshot file names written into the output directory.
const (
	ValidatingShot = "client_auth_validating.png"
	BiometricShot  = "biometric_scan.png"
	FailureShot    = "failure.png"
)

// Evidence writes screenshots into Dir.
type Evidence struct {
	Dir string
}

// Path joins name onto the output directory.
func (e Evidence) Path(name string) string {
	return filepath.Join(e.Dir, name)
}

// Capture screenshots the page's viewport to the named file and returns its
// path. On a nil error the file exists on disk.
func (e Evidence) Capture(ctx context.Context, page *chrome.Page, name string) (string, error) {
	path := e.Path(name)
	if err := page.ScreenshotTo(ctx, path); err != nil {
		return "", fmt.Errorf("capturing %s: %w", name, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("capturing %s: %w", name, err)
	}
	return path, nil
}
