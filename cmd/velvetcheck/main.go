package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tomyan/velvetcheck/internal/config"
	"github.com/tomyan/velvetcheck/internal/stubapp"
	"github.com/tomyan/velvetcheck/internal/verify"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailed       = 1 // verification failed with --strict
	ExitUsage        = 2
	ExitLaunchFailed = 3 // browser never came up, with --strict
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return newCLI(stdout, stderr).execute(args)
}

// cli holds the command tree's I/O and the hooks tests replace.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	// verifyFn runs one verification; replaced in tests.
	verifyFn func(ctx context.Context, cfg *config.Config, logger *slog.Logger) *verify.Report

	exitCode int
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout: stdout,
		stderr: stderr,
		verifyFn: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) *verify.Report {
			return verify.NewRunner(cfg, logger).Run(ctx)
		},
	}
}

func (c *cli) execute(args []string) int {
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return ExitUsage
	}
	return c.exitCode
}

// runFlags are the flags shared by the root command and "run".
type runFlags struct {
	configPath    string
	url           string
	outDir        string
	inviteCode    string
	chromePath    string
	headless      bool
	download      bool
	timeout       time.Duration
	expectTimeout time.Duration
	output        string
	logLevel      string
	strict        bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default ./"+config.DefaultFile+" if present)")
	fs.StringVar(&f.url, "url", d.URL, "Base URL of the application (env: VELVETCHECK_URL)")
	fs.StringVar(&f.outDir, "out-dir", d.OutDir, "Screenshot directory (env: VELVETCHECK_OUT_DIR)")
	fs.StringVar(&f.inviteCode, "invite-code", d.InviteCode, "Invite code to submit (env: VELVETCHECK_INVITE_CODE)")
	fs.StringVar(&f.chromePath, "chrome", "", "Path to Chrome (env: VELVETCHECK_CHROME_PATH)")
	fs.BoolVar(&f.headless, "headless", d.Browser.Headless, "Run Chrome headless (env: VELVETCHECK_HEADLESS)")
	fs.BoolVar(&f.download, "download-browser", d.Browser.Download, "Download Chromium if none is installed (env: VELVETCHECK_DOWNLOAD_BROWSER)")
	fs.DurationVar(&f.timeout, "timeout", d.Timeouts.Run, "Overall run timeout (env: VELVETCHECK_TIMEOUT)")
	fs.DurationVar(&f.expectTimeout, "expect-timeout", d.Timeouts.Expect, "Assertion timeout (env: VELVETCHECK_EXPECT_TIMEOUT)")
	fs.StringVar(&f.output, "output", d.Output, "Report format: text, json (env: VELVETCHECK_OUTPUT)")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn, error (env: VELVETCHECK_LOG_LEVEL)")
	fs.BoolVar(&f.strict, "strict", d.Strict, "Exit non-zero when verification fails (env: VELVETCHECK_STRICT)")
}

// apply copies explicitly set flags over cfg, so flags win over file and env.
func (f *runFlags) apply(cfg *config.Config, fs *pflag.FlagSet) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("url", func() { cfg.URL = f.url })
	set("out-dir", func() { cfg.OutDir = f.outDir })
	set("invite-code", func() { cfg.InviteCode = f.inviteCode })
	set("chrome", func() { cfg.Browser.ChromePath = f.chromePath })
	set("headless", func() { cfg.Browser.Headless = f.headless })
	set("download-browser", func() { cfg.Browser.Download = f.download })
	set("timeout", func() { cfg.Timeouts.Run = f.timeout })
	set("expect-timeout", func() { cfg.Timeouts.Expect = f.expectTimeout })
	set("output", func() { cfg.Output = f.output })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("strict", func() { cfg.Strict = f.strict })
}

// loadConfig resolves defaults < file < env < flags and validates the result.
func (f *runFlags) loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) rootCommand() *cobra.Command {
	var flags runFlags

	root := &cobra.Command{
		Use:   "velvetcheck",
		Short: "Verify the client onboarding flow in a real browser",
		Long: `velvetcheck drives the client onboarding flow (role selection, invite
code entry, biometric scan) in headless Chrome and saves screenshots of the
validating and scanning states. Without arguments it runs the verification.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runVerification(cmd, &flags)
		},
	}
	flags.register(root.Flags())

	root.AddCommand(c.runCommand())
	root.AddCommand(c.stubCommand())
	root.AddCommand(c.versionCommand())
	return root
}

func (c *cli) runCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the client auth verification (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runVerification(cmd, &flags)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func (c *cli) runVerification(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := flags.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	// The JSON report owns stdout; logs move to stderr so it stays parseable.
	logOut := c.stdout
	if cfg.Output == config.OutputJSON {
		logOut = c.stderr
	}
	logger, err := newLogger(logOut, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := c.verifyFn(ctx, cfg, logger)

	if err := writeReport(c.stdout, cfg.Output, report); err != nil {
		return err
	}
	c.exitCode = exitCodeFor(report, cfg.Strict)
	return nil
}

// exitCodeFor maps a report to an exit status. Without strict mode a failed
// verification still exits 0.
func exitCodeFor(report *verify.Report, strict bool) int {
	switch {
	case report.Passed || !strict:
		return ExitSuccess
	case report.LaunchFailed:
		return ExitLaunchFailed
	default:
		return ExitFailed
	}
}

func (c *cli) stubCommand() *cobra.Command {
	var (
		addr     string
		logLevel string
		opts     = stubapp.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a stand-in for the onboarding flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(c.stdout, logLevel)
			if err != nil {
				return err
			}
			srv, err := stubapp.Listen(addr, opts, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&addr, "addr", ":5000", "Listen address")
	fs.DurationVar(&opts.ValidatingDelay, "validating-delay", opts.ValidatingDelay, "How long \"Validating...\" is shown")
	fs.DurationVar(&opts.ScanDelay, "scan-delay", opts.ScanDelay, "How long \"Authenticating...\" is shown")
	fs.IntVar(&opts.MinCodeLength, "min-code-length", opts.MinCodeLength, "Shortest invite code that enables submit")
	fs.BoolVar(&opts.SkipValidating, "skip-validating", false, "Never show \"Validating...\" (failure drill)")
	fs.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(c.stdout, "velvetcheck %s\n", version)
		},
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
