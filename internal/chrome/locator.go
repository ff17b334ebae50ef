package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type locatorKind int

const (
	byLabel locatorKind = iota
	byRole
	byText
)

// Locator finds elements by what a user perceives: their label, their
// accessible role and name, or their text. It holds no element reference and
// re-resolves on every call, so it stays valid across re-renders.
type Locator struct {
	page  *Page
	kind  locatorKind
	role  string
	query string
	exact bool
}

// GetByLabel locates form controls and other elements by aria-label,
// aria-labelledby, or an associated <label>.
func (p *Page) GetByLabel(label string) *Locator {
	return &Locator{page: p, kind: byLabel, query: label}
}

// GetByRole locates elements by accessibility role and accessible name.
// An empty name matches any element with the role.
func (p *Page) GetByRole(role, name string) *Locator {
	return &Locator{page: p, kind: byRole, role: role, query: name}
}

// GetByText locates the innermost elements whose text content matches.
func (p *Page) GetByText(text string) *Locator {
	return &Locator{page: p, kind: byText, query: text}
}

// Exact returns a copy of the locator that matches case-sensitively on the whole string.
func (l *Locator) Exact() *Locator {
	cp := *l
	cp.exact = true
	return &cp
}

func (l *Locator) String() string {
	var s string
	switch l.kind {
	case byLabel:
		s = fmt.Sprintf("getByLabel(%q)", l.query)
	case byRole:
		if l.query == "" {
			s = fmt.Sprintf("getByRole(%q)", l.role)
		} else {
			s = fmt.Sprintf("getByRole(%q, name=%q)", l.role, l.query)
		}
	case byText:
		s = fmt.Sprintf("getByText(%q)", l.query)
	}
	if l.exact {
		s += ".exact()"
	}
	return s
}

// normalizeWhitespace collapses runs of whitespace and trims the ends,
// mirroring the in-page normalisation in matcherJS.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchText reports whether value matches query under the locator rules:
// case-insensitive substring by default, case-sensitive full match when exact.
func matchText(value, query string, exact bool) bool {
	v := normalizeWhitespace(value)
	q := normalizeWhitespace(query)
	if exact {
		return v == q
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(q))
}

const matcherJS = `
	const norm = (s) => String(s || '').replace(/\s+/g, ' ').trim();
	const match = (s) => exact ? norm(s) === norm(q) : norm(s).toLowerCase().includes(norm(q).toLowerCase());
`

const labelQueryJS = `(function(q, exact) {` + matcherJS + `
	const out = [];
	for (const el of document.querySelectorAll('*')) {
		const names = [];
		const aria = el.getAttribute('aria-label');
		if (aria) names.push(aria);
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			names.push(by.split(/\s+/).map((id) => {
				const ref = document.getElementById(id);
				return ref ? ref.textContent : '';
			}).join(' '));
		}
		if (el.labels) {
			for (const l of el.labels) names.push(l.textContent);
		}
		if (names.some(match)) out.push(el);
	}
	return out;
})`

const textQueryJS = `(function(q, exact) {` + matcherJS + `
	const skip = new Set(['SCRIPT', 'STYLE', 'NOSCRIPT', 'TEMPLATE', 'HEAD']);
	const hits = [];
	const walk = (el) => {
		if (skip.has(el.tagName)) return false;
		let childHit = false;
		for (const child of el.children) {
			if (walk(child)) childHit = true;
		}
		if (childHit) return true;
		if (match(el.textContent)) {
			hits.push(el);
			return true;
		}
		return false;
	};
	if (document.body) walk(document.body);
	return hits;
})`

const elementStateJS = `function() {
	const el = this;
	if (!el.isConnected) return { attached: false };
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	const visible = rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden';
	const disabled = (el.matches && el.matches(':disabled')) || !!el.closest('[aria-disabled="true"]');
	const tag = el.tagName;
	const editable = !disabled && !el.readOnly &&
		(tag === 'INPUT' || tag === 'TEXTAREA' || tag === 'SELECT' || el.isContentEditable);
	return {
		attached: true,
		visible: visible,
		enabled: !disabled,
		editable: editable,
		box: { x: rect.x, y: rect.y, width: rect.width, height: rect.height },
		value: ('value' in el) ? String(el.value) : null,
	};
}`

// resolve returns remote object IDs for every element the locator matches,
// in document order. Callers release them with page.releaseObjects.
func (l *Locator) resolve(ctx context.Context) ([]string, error) {
	switch l.kind {
	case byRole:
		return l.resolveRole(ctx)
	case byLabel:
		return l.resolveScript(ctx, labelQueryJS)
	default:
		return l.resolveScript(ctx, textQueryJS)
	}
}

func (l *Locator) resolveScript(ctx context.Context, fn string) ([]string, error) {
	q, err := json.Marshal(l.query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	arrayID, err := l.page.evaluateHandle(ctx, fmt.Sprintf("%s(%s, %t)", fn, q, l.exact))
	if err != nil {
		return nil, err
	}
	return l.page.arrayElements(ctx, arrayID)
}

func (l *Locator) resolveRole(ctx context.Context) ([]string, error) {
	p := l.page

	docResult, err := p.call(ctx, "DOM.getDocument", map[string]interface{}{"depth": 0})
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	var docResp struct {
		Root struct {
			NodeID int64 `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(docResult, &docResp); err != nil {
		return nil, fmt.Errorf("parsing document response: %w", err)
	}

	axResult, err := p.call(ctx, "Accessibility.queryAXTree", map[string]interface{}{
		"nodeId": docResp.Root.NodeID,
		"role":   l.role,
	})
	if err != nil {
		return nil, fmt.Errorf("querying accessibility tree: %w", err)
	}

	var axResp struct {
		Nodes []struct {
			Ignored bool `json:"ignored"`
			Name    *struct {
				Value interface{} `json:"value"`
			} `json:"name"`
			BackendDOMNodeID int64 `json:"backendDOMNodeId"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(axResult, &axResp); err != nil {
		return nil, fmt.Errorf("parsing accessibility nodes: %w", err)
	}

	var ids []string
	for _, n := range axResp.Nodes {
		if n.Ignored || n.BackendDOMNodeID == 0 {
			continue
		}
		if l.query != "" {
			name := ""
			if n.Name != nil {
				if s, ok := n.Name.Value.(string); ok {
					name = s
				}
			}
			if !matchText(name, l.query, l.exact) {
				continue
			}
		}
		id, err := p.resolveBackendNode(ctx, n.BackendDOMNodeID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// one resolves the locator to exactly one element. Zero matches wrap
// ErrNotFound and several wrap ErrStrictMode.
func (l *Locator) one(ctx context.Context) (string, error) {
	ids, err := l.resolve(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%s: %w", l, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%s resolved to %d elements: %w", l, len(ids), ErrStrictMode)
	}
}

// State snapshots the single matched element.
func (l *Locator) State(ctx context.Context) (*ElementState, error) {
	defer l.page.releaseObjects(ctx)

	id, err := l.one(ctx)
	if err != nil {
		return nil, err
	}
	return l.page.elementState(ctx, id)
}

func (p *Page) elementState(ctx context.Context, objectID string) (*ElementState, error) {
	var st ElementState
	if err := p.callFunctionOn(ctx, objectID, elementStateJS, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
