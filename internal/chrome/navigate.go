package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// NewPage opens a blank tab and attaches to it.
func (c *Client) NewPage(ctx context.Context) (*Page, error) {
	result, err := c.Call(ctx, "Target.createTarget", map[string]interface{}{
		"url": "about:blank",
	})
	if err != nil {
		return nil, fmt.Errorf("creating target: %w", err)
	}

	var resp struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return c.attachPage(ctx, resp.TargetID)
}

// attachPage wraps a page target in a Page with the domains locators need enabled.
func (c *Client) attachPage(ctx context.Context, targetID string) (*Page, error) {
	sessionID, err := c.attachToTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	p := &Page{
		client:            c,
		targetID:          targetID,
		sessionID:         sessionID,
		ActionTimeout:     DefaultActionTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
	}

	for _, domain := range []string{"Page.enable", "DOM.enable", "Runtime.enable", "Accessibility.enable"} {
		if _, err := p.call(ctx, domain, nil); err != nil {
			return nil, fmt.Errorf("enabling %s: %w", domain, err)
		}
	}
	return p, nil
}

// Close closes the page's tab.
func (p *Page) Close(ctx context.Context) error {
	p.client.forgetTarget(p.targetID)

	_, err := p.client.Call(ctx, "Target.closeTarget", map[string]interface{}{
		"targetId": p.targetID,
	})
	if err != nil {
		return fmt.Errorf("closing target: %w", err)
	}
	return nil
}

// Goto navigates the page and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string) (*NavigateResult, error) {
	// Subscribe before navigating so a fast load is not missed
	loadCh := p.client.subscribeEvent(p.sessionID, "Page.loadEventFired")
	defer p.client.unsubscribeEvent(p.sessionID, "Page.loadEventFired", loadCh)

	navResult, err := p.call(ctx, "Page.navigate", map[string]string{
		"url": url,
	})
	if err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	var navResp struct {
		FrameID   string `json:"frameId"`
		LoaderID  string `json:"loaderId"`
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(navResult, &navResp); err != nil {
		return nil, fmt.Errorf("parsing navigate response: %w", err)
	}

	if navResp.ErrorText != "" {
		return nil, fmt.Errorf("navigating to %s: %s", url, navResp.ErrorText)
	}

	timer := time.NewTimer(p.NavigationTimeout)
	defer timer.Stop()

	select {
	case <-loadCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("navigating to %s: %w", url, &TimeoutError{What: "load event", Timeout: p.NavigationTimeout})
	}

	return &NavigateResult{
		FrameID:  navResp.FrameID,
		LoaderID: navResp.LoaderID,
		URL:      url,
	}, nil
}

// URL returns the current document location.
func (p *Page) URL(ctx context.Context) (string, error) {
	result, err := p.Eval(ctx, "document.location.href")
	if err != nil {
		return "", err
	}
	if s, ok := result.Value.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", result.Value), nil
}
