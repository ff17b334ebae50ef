package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// objectGroup tags every remote object the locators create so they can be
// released in one call once an operation finishes.
const objectGroup = "velvetcheck-locators"

// callFunctionOn runs functionDeclaration with this bound to objectID and
// unmarshals the by-value result into out (which may be nil).
func (p *Page) callFunctionOn(ctx context.Context, objectID string, functionDeclaration string, out interface{}, args ...interface{}) error {
	callArgs := make([]map[string]interface{}, 0, len(args))
	for _, a := range args {
		callArgs = append(callArgs, map[string]interface{}{"value": a})
	}

	result, err := p.call(ctx, "Runtime.callFunctionOn", map[string]interface{}{
		"objectId":            objectID,
		"functionDeclaration": functionDeclaration,
		"arguments":           callArgs,
		"returnByValue":       true,
		"awaitPromise":        true,
	})
	if err != nil {
		return fmt.Errorf("calling function on element: %w", err)
	}

	var resp struct {
		Result           json.RawMessage   `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("parsing call response: %w", err)
	}
	if resp.ExceptionDetails != nil {
		return resp.ExceptionDetails.err()
	}
	if out == nil {
		return nil
	}

	var wrapped struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(resp.Result, &wrapped); err != nil {
		return fmt.Errorf("parsing call result: %w", err)
	}
	if len(wrapped.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapped.Value, out); err != nil {
		return fmt.Errorf("decoding call result: %w", err)
	}
	return nil
}

// evaluateHandle evaluates expression and returns a remote object reference
// to its result instead of its value.
func (p *Page) evaluateHandle(ctx context.Context, expression string) (string, error) {
	result, err := p.call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":  expression,
		"objectGroup": objectGroup,
	})
	if err != nil {
		return "", fmt.Errorf("evaluating expression: %w", err)
	}

	var resp struct {
		Result           remoteObject      `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("parsing eval response: %w", err)
	}
	if resp.ExceptionDetails != nil {
		return "", resp.ExceptionDetails.err()
	}
	if resp.Result.ObjectID == "" {
		return "", fmt.Errorf("expression did not return an object")
	}
	return resp.Result.ObjectID, nil
}

// arrayElements returns the object IDs of the DOM nodes held in a remote array.
func (p *Page) arrayElements(ctx context.Context, arrayID string) ([]string, error) {
	result, err := p.call(ctx, "Runtime.getProperties", map[string]interface{}{
		"objectId":      arrayID,
		"ownProperties": true,
	})
	if err != nil {
		return nil, fmt.Errorf("reading array: %w", err)
	}

	var resp struct {
		Result []struct {
			Name  string        `json:"name"`
			Value *remoteObject `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parsing properties: %w", err)
	}

	// Properties come back unordered relative to the index; restore document order.
	byIndex := map[int]string{}
	for _, prop := range resp.Result {
		idx, err := strconv.Atoi(prop.Name)
		if err != nil || prop.Value == nil || prop.Value.Subtype != "node" {
			continue
		}
		byIndex[idx] = prop.Value.ObjectID
	}
	ids := make([]string, 0, len(byIndex))
	for i := 0; i < len(byIndex); i++ {
		if id, ok := byIndex[i]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// resolveBackendNode turns a backend DOM node ID into a remote object ID.
func (p *Page) resolveBackendNode(ctx context.Context, backendNodeID int64) (string, error) {
	result, err := p.call(ctx, "DOM.resolveNode", map[string]interface{}{
		"backendNodeId": backendNodeID,
		"objectGroup":   objectGroup,
	})
	if err != nil {
		return "", fmt.Errorf("resolving node: %w", err)
	}

	var resp struct {
		Object remoteObject `json:"object"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("parsing resolve response: %w", err)
	}
	return resp.Object.ObjectID, nil
}

// releaseObjects frees every remote object created by the locators.
func (p *Page) releaseObjects(ctx context.Context) {
	p.call(ctx, "Runtime.releaseObjectGroup", map[string]interface{}{
		"objectGroup": objectGroup,
	})
}

// objectCenter returns the centre of an element's content box in viewport coordinates.
func (p *Page) objectCenter(ctx context.Context, objectID string) (x, y float64, err error) {
	boxResult, err := p.call(ctx, "DOM.getBoxModel", map[string]interface{}{
		"objectId": objectID,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("getting box model: %w", err)
	}

	var boxResp struct {
		Model struct {
			Content []float64 `json:"content"`
		} `json:"model"`
	}
	if err := json.Unmarshal(boxResult, &boxResp); err != nil {
		return 0, 0, fmt.Errorf("parsing box model response: %w", err)
	}

	content := boxResp.Model.Content
	if len(content) < 8 {
		return 0, 0, fmt.Errorf("invalid box model")
	}

	x = (content[0] + content[2] + content[4] + content[6]) / 4
	y = (content[1] + content[3] + content[5] + content[7]) / 4
	return x, y, nil
}

// dispatchMouseClick dispatches mouseMoved, mousePressed, and mouseReleased events.
func (p *Page) dispatchMouseClick(ctx context.Context, x, y float64, button string, clickCount int) error {
	_, err := p.call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type": "mouseMoved",
		"x":    x,
		"y":    y,
	})
	if err != nil {
		return fmt.Errorf("dispatching mouseMoved: %w", err)
	}

	_, err = p.call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type":       "mousePressed",
		"x":          x,
		"y":          y,
		"button":     button,
		"clickCount": clickCount,
	})
	if err != nil {
		return fmt.Errorf("dispatching mousePressed: %w", err)
	}

	_, err = p.call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type":       "mouseReleased",
		"x":          x,
		"y":          y,
		"button":     button,
		"clickCount": clickCount,
	})
	if err != nil {
		return fmt.Errorf("dispatching mouseReleased: %w", err)
	}

	return nil
}

// pressKey sends a keyDown/keyUp pair for a non-printing key.
func (p *Page) pressKey(ctx context.Context, key string, keyCode int) error {
	for _, typ := range []string{"keyDown", "keyUp"} {
		_, err := p.call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
			"type":                  typ,
			"key":                   key,
			"code":                  key,
			"windowsVirtualKeyCode": keyCode,
			"nativeVirtualKeyCode":  keyCode,
		})
		if err != nil {
			return fmt.Errorf("dispatching %s %s: %w", typ, key, err)
		}
	}
	return nil
}
