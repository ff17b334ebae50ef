package chrome

import (
	"context"
	"errors"
	"fmt"
)

const selectContentsJS = `function() {
	this.focus();
	if (typeof this.select === 'function') {
		this.select();
		return;
	}
	const range = document.createRange();
	range.selectNodeContents(this);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
}`

const scrollIntoViewJS = `function() {
	this.scrollIntoView({ block: 'center', inline: 'center', behavior: 'instant' });
}`

// actionability lists the element conditions an action waits for.
type actionability struct {
	enabled  bool
	editable bool
}

// waitActionable polls until the locator resolves to a single element that is
// attached, visible, has a stable bounding box across two polls, and meets
// the extra conditions in want. The returned object ID stays valid until the
// caller releases the locator object group.
func (l *Locator) waitActionable(ctx context.Context, action string, want actionability) (string, error) {
	var (
		objectID string
		lastBox  *BoundingBox
	)

	last, ok := poll(ctx, l.page.ActionTimeout, func() error {
		l.page.releaseObjects(ctx)

		id, err := l.one(ctx)
		if err != nil {
			lastBox = nil
			return err
		}
		st, err := l.page.elementState(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case !st.Attached:
			lastBox = nil
			return fmt.Errorf("element is not attached: %w", errKeepWaiting)
		case !st.Visible:
			lastBox = nil
			return fmt.Errorf("element is not visible: %w", errKeepWaiting)
		case want.enabled && !st.Enabled:
			return fmt.Errorf("element is not enabled: %w", errKeepWaiting)
		case want.editable && !st.Editable:
			return fmt.Errorf("element is not editable: %w", errKeepWaiting)
		}

		if lastBox == nil || *lastBox != st.Box {
			box := st.Box
			lastBox = &box
			return fmt.Errorf("element is not stable: %w", errKeepWaiting)
		}

		objectID = id
		return nil
	})
	if ok {
		return objectID, nil
	}
	if errors.Is(last, errKeepWaiting) || isNotFound(last) {
		return "", fmt.Errorf("%s %s: %w", action, l, &TimeoutError{What: "element to be actionable", Timeout: l.page.ActionTimeout, Last: last})
	}
	return "", fmt.Errorf("%s %s: %w", action, l, last)
}

// Click waits for the element to be actionable, scrolls it into view and
// clicks its centre with the left mouse button.
func (l *Locator) Click(ctx context.Context) error {
	p := l.page
	defer p.releaseObjects(ctx)

	id, err := l.waitActionable(ctx, "click", actionability{enabled: true})
	if err != nil {
		return err
	}

	if err := p.callFunctionOn(ctx, id, scrollIntoViewJS, nil); err != nil {
		return fmt.Errorf("click %s: scrolling into view: %w", l, err)
	}

	x, y, err := p.objectCenter(ctx, id)
	if err != nil {
		return fmt.Errorf("click %s: %w", l, err)
	}

	if err := p.dispatchMouseClick(ctx, x, y, "left", 1); err != nil {
		return fmt.Errorf("click %s: %w", l, err)
	}
	return nil
}

// Fill replaces the content of an input, textarea or contenteditable element.
// The current content is selected and overwritten, so filling the same value
// twice leaves the same state. Filling an empty string clears the element.
func (l *Locator) Fill(ctx context.Context, text string) error {
	p := l.page
	defer p.releaseObjects(ctx)

	id, err := l.waitActionable(ctx, "fill", actionability{enabled: true, editable: true})
	if err != nil {
		return err
	}

	if err := p.callFunctionOn(ctx, id, selectContentsJS, nil); err != nil {
		return fmt.Errorf("fill %s: selecting contents: %w", l, err)
	}

	if text == "" {
		if err := p.pressKey(ctx, "Delete", 46); err != nil {
			return fmt.Errorf("fill %s: %w", l, err)
		}
		return nil
	}

	if _, err := p.call(ctx, "Input.insertText", map[string]interface{}{
		"text": text,
	}); err != nil {
		return fmt.Errorf("fill %s: inserting text: %w", l, err)
	}
	return nil
}
