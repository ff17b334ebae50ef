package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/tomyan/velvetcheck/internal/config"
	"github.com/tomyan/velvetcheck/internal/verify"
)

func writeReport(w io.Writer, format string, r *verify.Report) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case config.OutputText:
		writeSummary(w, r)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func writeSummary(w io.Writer, r *verify.Report) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	status := green("PASS")
	if !r.Passed {
		status = red("FAIL")
	}
	elapsed := (time.Duration(r.DurationMS) * time.Millisecond).Round(100 * time.Millisecond)
	fmt.Fprintf(w, "%s %s %s\n", status, r.URL, dim(fmt.Sprintf("(%s, run %s)", elapsed, r.RunID)))

	for _, path := range r.Screenshots {
		fmt.Fprintf(w, "  screenshot: %s\n", path)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
}
