package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomyan/velvetcheck/internal/chrome"
	"github.com/tomyan/velvetcheck/internal/chrome/launcher"
	"github.com/tomyan/velvetcheck/internal/config"
)

// Session is a launched browser, its DevTools connection and one page. It is
// acquired before the scenario runs and closed whatever the outcome.
type Session struct {
	Page *chrome.Page

	inst   *launcher.Instance
	client *chrome.Client
	logger *slog.Logger
}

// ErrLaunch wraps every failure to bring up the browser session.
var ErrLaunch = errors.New("browser launch failed")

// OpenSession finds (or downloads) Chrome, launches it, connects and opens
// a page sized and timed per cfg.
func OpenSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := launcher.FindChrome(cfg.Browser.ChromePath)
	if path == "" && cfg.Browser.ChromePath == "" && cfg.Browser.Download {
		logger.Info("no local Chrome found, downloading Chromium")
		var err error
		path, err = launcher.Download(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
	}
	if path == "" {
		path = cfg.Browser.ChromePath
	}

	inst, err := launcher.Launch(ctx, launcher.LaunchOptions{
		ChromePath:   path,
		Headless:     cfg.Browser.Headless,
		WindowWidth:  cfg.Browser.Width,
		WindowHeight: cfg.Browser.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	logger.Debug("browser launched", "path", inst.Path, "pid", inst.PID, "port", inst.Port, "headless", cfg.Browser.Headless)

	s := &Session{inst: inst, logger: logger}

	s.client, err = chrome.Connect(ctx, "localhost", inst.Port)
	if err != nil {
		s.Close(context.Background())
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	s.Page, err = s.client.NewPage(ctx)
	if err != nil {
		s.Close(context.Background())
		return nil, fmt.Errorf("%w: opening page: %w", ErrLaunch, err)
	}
	s.Page.ActionTimeout = cfg.Timeouts.Action
	s.Page.NavigationTimeout = cfg.Timeouts.Navigation

	if err := s.Page.SetViewport(ctx, cfg.Browser.Width, cfg.Browser.Height); err != nil {
		s.Close(context.Background())
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return s, nil
}

// Close asks the browser to exit, drops the connection and reaps the
// process. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.client != nil {
		if err := s.client.CloseBrowser(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.client.Close(); err != nil && !errors.Is(err, chrome.ErrConnectionClosed) {
			s.logger.Debug("closing DevTools connection", "error", err)
		}
	}
	if s.inst != nil {
		if err := s.inst.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Debug("browser closed")
	return errors.Join(errs...)
}
