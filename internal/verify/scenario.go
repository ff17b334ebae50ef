// Package verify drives the client onboarding flow in a real browser and
// records screenshot evidence of its transient states.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomyan/velvetcheck/internal/chrome"
	"github.com/tomyan/velvetcheck/internal/expect"
)

// Labels and texts the flow is located by.
const (
	ClientRoleLabel = "Select client browsing experience"
	AuthHeading     = "Velvet Rope Entry"
	InviteCodeLabel = "Invite Code"
	SubmitButton    = "Enter"
	ValidatingText  = "Validating..."
	ScanningText    = "Authenticating..."
)

// Step is one action of a scenario.
type Step struct {
	Description string
	Run         func(ctx context.Context) error
}

// Params configures the client auth scenario.
type Params struct {
	URL        string
	InviteCode string
	Expect     *expect.Expect
	Evidence   Evidence
	Logger     *slog.Logger
	// OnCapture is called with the path of every screenshot written.
	OnCapture func(path string)
}

// ClientAuthSteps builds the client auth flow against page: pick the client
// role, enter the invite code, submit, and capture the validating and
// biometric scan states.
func ClientAuthSteps(page *chrome.Page, p Params) []Step {
	e := p.Expect
	if e == nil {
		e = expect.New(expect.DefaultTimeout)
	}

	capture := func(ctx context.Context, name string) error {
		path, err := p.Evidence.Capture(ctx, page, name)
		if err != nil {
			return err
		}
		if p.OnCapture != nil {
			p.OnCapture(path)
		}
		return nil
	}

	return []Step{
		{
			Description: fmt.Sprintf("navigate to %s", p.URL),
			Run: func(ctx context.Context) error {
				_, err := page.Goto(ctx, p.URL)
				return err
			},
		},
		{
			Description: fmt.Sprintf("click %q", ClientRoleLabel),
			Run: func(ctx context.Context) error {
				role := page.GetByLabel(ClientRoleLabel)
				if err := e.Visible(ctx, role); err != nil {
					return err
				}
				return role.Click(ctx)
			},
		},
		{
			Description: fmt.Sprintf("expect %q visible", AuthHeading),
			Run: func(ctx context.Context) error {
				return e.Visible(ctx, page.GetByText(AuthHeading))
			},
		},
		{
			Description: fmt.Sprintf("fill %q", InviteCodeLabel),
			Run: func(ctx context.Context) error {
				input := page.GetByLabel(InviteCodeLabel)
				if err := e.Visible(ctx, input); err != nil {
					return err
				}
				return input.Fill(ctx, p.InviteCode)
			},
		},
		{
			Description: fmt.Sprintf("click button %q", SubmitButton),
			Run: func(ctx context.Context) error {
				submit := page.GetByRole("button", SubmitButton)
				if err := e.Enabled(ctx, submit); err != nil {
					return err
				}
				return submit.Click(ctx)
			},
		},
		{
			Description: fmt.Sprintf("expect %q visible", ValidatingText),
			Run: func(ctx context.Context) error {
				if err := e.Visible(ctx, page.GetByText(ValidatingText)); err != nil {
					return err
				}
				return capture(ctx, ValidatingShot)
			},
		},
		{
			Description: fmt.Sprintf("expect %q visible", ScanningText),
			Run: func(ctx context.Context) error {
				if err := e.Visible(ctx, page.GetByText(ScanningText)); err != nil {
					return err
				}
				return capture(ctx, BiometricShot)
			},
		},
	}
}

// RunSteps runs steps in order and stops at the first failure, which is
// wrapped with the step's number and description.
func RunSteps(ctx context.Context, steps []Step, logger *slog.Logger) error {
	for i, step := range steps {
		n := i + 1
		logger.Debug("step", "n", n, "description", step.Description)
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("step %d (%s): %w", n, step.Description, err)
		}
	}
	return nil
}

// ClientAuthScenario runs the client auth flow on page.
func ClientAuthScenario(ctx context.Context, page *chrome.Page, p Params) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return RunSteps(ctx, ClientAuthSteps(page, p), logger)
}
