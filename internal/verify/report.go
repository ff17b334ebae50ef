package verify

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Report is the outcome of one run.
type Report struct {
	RunID      string    `json:"run_id"`
	URL        string    `json:"url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Passed     bool      `json:"passed"`
	// Screenshots lists every file written, in order, including failure.png.
	Screenshots       []string `json:"screenshots"`
	FailureScreenshot string   `json:"failure_screenshot,omitempty"`
	Error             string   `json:"error,omitempty"`
	// LaunchFailed is set when the browser never came up.
	LaunchFailed bool `json:"launch_failed,omitempty"`

	err error
}

func newReport(url string, now time.Time) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		URL:         url,
		StartedAt:   now,
		Screenshots: []string{},
	}
}

func (r *Report) addScreenshot(path string) {
	r.Screenshots = append(r.Screenshots, path)
}

func (r *Report) fail(err error) {
	r.err = err
	r.Error = err.Error()
	r.LaunchFailed = errors.Is(err, ErrLaunch)
}

func (r *Report) finish(now time.Time) {
	r.FinishedAt = now
	r.DurationMS = now.Sub(r.StartedAt).Milliseconds()
	r.Passed = r.err == nil
}

// Err returns the failure, or nil when the run passed.
func (r *Report) Err() error {
	return r.err
}
