// Package testutil provides test utilities for browser-driven tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/tomyan/velvetcheck/internal/chrome"
	"github.com/tomyan/velvetcheck/internal/chrome/launcher"
)

// StartChrome starts a headless Chrome instance on a port Chrome picks.
// The instance must be stopped with Stop(). When no browser is installed the
// error wraps launcher.ErrChromeNotFound.
func StartChrome() (*launcher.Instance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return launcher.Launch(ctx, launcher.LaunchOptions{
		Headless:     true,
		StartTimeout: 20 * time.Second,
	})
}

// MainWithChrome runs a package's tests with a shared Chrome instance stored
// in *inst. Missing Chrome leaves *inst nil so RequireChrome can skip; any
// other launch failure aborts the package.
func MainWithChrome(m *testing.M, inst **launcher.Instance) {
	var err error
	*inst, err = StartChrome()
	if err != nil {
		if !errors.Is(err, launcher.ErrChromeNotFound) {
			fmt.Fprintf(os.Stderr, "Failed to start Chrome: %v\n", err)
			os.Exit(1)
		}
		*inst = nil
	}

	code := m.Run()

	if *inst != nil {
		(*inst).Stop()
	}
	os.Exit(code)
}

// RequireChrome skips the test when no Chrome instance is running.
func RequireChrome(t testing.TB, inst *launcher.Instance) {
	t.Helper()
	if inst == nil {
		t.Skip("Chrome not found on this system")
	}
}

// NewPage connects to inst and opens an isolated tab. The tab and connection
// are closed when the test ends.
func NewPage(t testing.TB, inst *launcher.Instance) *chrome.Page {
	t.Helper()
	RequireChrome(t, inst)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := chrome.Connect(ctx, "localhost", inst.Port)
	if err != nil {
		t.Fatalf("connecting to Chrome: %v", err)
	}

	page, err := client.NewPage(ctx)
	if err != nil {
		client.Close()
		t.Fatalf("creating test page: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		page.Close(ctx)
		client.Close()
	})
	return page
}

// ServeHTML serves body as text/html at every path and returns the server URL.
func ServeHTML(t testing.TB, body string) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}
