package verify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tomyan/velvetcheck/internal/chrome"
	"github.com/tomyan/velvetcheck/internal/config"
	"github.com/tomyan/velvetcheck/internal/expect"
)

// cleanupTimeout bounds the failure screenshot and browser shutdown, which
// run after the run context may already be done.
const cleanupTimeout = 10 * time.Second

// SessionOpener brings up the browser session a run drives.
type SessionOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Session, error)

// Runner executes the client auth verification once per Run.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	open   SessionOpener
	now    func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSessionOpener replaces how the browser session is acquired.
func WithSessionOpener(open SessionOpener) Option {
	return func(r *Runner) { r.open = open }
}

// WithClock replaces the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		open:   OpenSession,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run launches the browser, runs the scenario and always closes the browser.
// A failure is logged once and, when a page exists, a failure screenshot is
// attempted. Run never returns an error; the report carries the outcome.
func (r *Runner) Run(ctx context.Context) *Report {
	report := newReport(r.cfg.URL, r.now())
	logger := r.logger.With("run_id", report.RunID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Run)
	defer cancel()

	logger.Info("starting verification", "url", r.cfg.URL, "out_dir", r.cfg.OutDir)

	evidence := Evidence{Dir: r.cfg.OutDir}

	session, err := r.open(ctx, r.cfg, logger)
	if err != nil {
		report.fail(err)
		logger.Error("verification failed", "error", err)
		report.finish(r.now())
		return report
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("closing browser", "error", err)
		}
	}()

	stopConsole := forwardConsole(session.Page, logger)
	err = ClientAuthScenario(ctx, session.Page, Params{
		URL:        r.cfg.URL,
		InviteCode: r.cfg.InviteCode,
		Expect:     expect.New(r.cfg.Timeouts.Expect),
		Evidence:   evidence,
		Logger:     logger,
		OnCapture: func(path string) {
			logger.Info("screenshot saved", "path", path)
			report.addScreenshot(path)
		},
	})
	stopConsole()
	if err != nil {
		report.fail(err)
		logger.Error("verification failed", "error", err)
		r.captureFailure(ctx, session.Page, evidence, report, logger)
	} else {
		logger.Info("verification passed", "screenshots", len(report.Screenshots))
	}

	report.finish(r.now())
	return report
}

// captureFailure logs where the page was and writes failure.png. Its own
// failure is logged, not returned.
func (r *Runner) captureFailure(ctx context.Context, page *chrome.Page, evidence Evidence, report *Report, logger *slog.Logger) {
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if url, err := page.URL(shotCtx); err == nil {
		logger.Info("page at failure", "url", url)
	}

	path, err := evidence.Capture(shotCtx, page, FailureShot)
	if err != nil {
		logger.Warn("failure screenshot not captured", "error", err)
		return
	}
	logger.Info("failure screenshot saved", "path", path)
	report.FailureScreenshot = path
	report.addScreenshot(path)
}

// forwardConsole logs the page's console output while the scenario runs.
// Errors and uncaught exceptions log at warn, everything else at debug. The
// returned func stops forwarding and waits for pending messages.
func forwardConsole(page *chrome.Page, logger *slog.Logger) func() {
	msgs, stop := page.CaptureConsole()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range msgs {
			level := slog.LevelDebug
			if msg.Type == "error" || msg.Type == "exception" {
				level = slog.LevelWarn
			}
			logger.Log(context.Background(), level, "page console", "type", msg.Type, "text", msg.Text)
		}
	}()

	return func() {
		stop()
		wg.Wait()
	}
}
