package chrome

import (
	"errors"
	"fmt"
)

// --- Errors ---

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrProtocolError    = errors.New("protocol error")
	ErrNotFound         = errors.New("element not found")
	ErrStrictMode       = errors.New("strict mode violation")
	ErrTimeout          = errors.New("timeout")
)

// ProtocolError represents an error returned by the Chrome DevTools Protocol.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolError
}

// --- Targets ---

// NavigateResult contains the result of a navigation.
type NavigateResult struct {
	FrameID  string `json:"frameId"`
	LoaderID string `json:"loaderId,omitempty"`
	URL      string `json:"url"`
}

// --- Page ---

// ScreenshotOptions configures screenshot capture.
type ScreenshotOptions struct {
	Format  string // "png", "jpeg", "webp"
	Quality int    // 0-100, only for jpeg/webp
}

// EvalResult contains the result of evaluating a JavaScript expression.
type EvalResult struct {
	Value interface{} `json:"value"`
	Type  string      `json:"type,omitempty"`
}

// BoundingBox is an element's rectangle in CSS pixels relative to the viewport.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// --- Elements ---

// ElementState is a snapshot of the properties actionability checks look at.
type ElementState struct {
	Attached bool        `json:"attached"`
	Visible  bool        `json:"visible"`
	Enabled  bool        `json:"enabled"`
	Editable bool        `json:"editable"`
	Box      BoundingBox `json:"box"`
	Value    *string     `json:"value"`
}

// remoteObject is the subset of Runtime.RemoteObject the client uses.
type remoteObject struct {
	Type        string      `json:"type"`
	Subtype     string      `json:"subtype,omitempty"`
	ObjectID    string      `json:"objectId,omitempty"`
	Value       interface{} `json:"value,omitempty"`
	Description string      `json:"description,omitempty"`
}

type exceptionDetails struct {
	Text      string        `json:"text"`
	Exception *remoteObject `json:"exception,omitempty"`
}

func (e *exceptionDetails) err() error {
	if e.Exception != nil && e.Exception.Description != "" {
		return fmt.Errorf("JS exception: %s", e.Exception.Description)
	}
	return fmt.Errorf("JS exception: %s", e.Text)
}
