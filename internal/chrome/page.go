package chrome

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied to pages opened by the client.
const (
	DefaultActionTimeout     = 30 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
)

// Page is an attached browser tab. All page operations run on its flattened session.
type Page struct {
	client    *Client
	targetID  string
	sessionID string

	// ActionTimeout bounds the actionability wait of Click and Fill.
	ActionTimeout time.Duration
	// NavigationTimeout bounds the wait for the load event in Goto.
	NavigationTimeout time.Duration
}

func (p *Page) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return p.client.CallSession(ctx, p.sessionID, method, params)
}

// Screenshot captures the visible viewport.
func (p *Page) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	params := map[string]interface{}{}
	if opts.Format != "" {
		params["format"] = opts.Format
	}
	if opts.Quality > 0 {
		params["quality"] = opts.Quality
	}

	result, err := p.call(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	var screenshotResp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &screenshotResp); err != nil {
		return nil, fmt.Errorf("parsing screenshot response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(screenshotResp.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot data: %w", err)
	}

	return data, nil
}

// ScreenshotTo captures a PNG of the viewport and writes it to path,
// creating parent directories as needed.
func (p *Page) ScreenshotTo(ctx context.Context, path string) error {
	data, err := p.Screenshot(ctx, ScreenshotOptions{Format: "png"})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}
	return nil
}

// Eval evaluates a JavaScript expression in the page and returns its value.
func (p *Page) Eval(ctx context.Context, expression string) (*EvalResult, error) {
	evalResult, err := p.call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating expression: %w", err)
	}

	var evalResp struct {
		Result           remoteObject      `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(evalResult, &evalResp); err != nil {
		return nil, fmt.Errorf("parsing eval response: %w", err)
	}

	if evalResp.ExceptionDetails != nil {
		return nil, evalResp.ExceptionDetails.err()
	}

	return &EvalResult{
		Value: evalResp.Result.Value,
		Type:  evalResp.Result.Type,
	}, nil
}

// SetViewport overrides the page's device metrics.
func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	_, err := p.call(ctx, "Emulation.setDeviceMetricsOverride", map[string]interface{}{
		"width":             width,
		"height":            height,
		"deviceScaleFactor": 1,
		"mobile":            false,
	})
	if err != nil {
		return fmt.Errorf("setting viewport: %w", err)
	}
	return nil
}
