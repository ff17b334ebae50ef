package chrome

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// ConsoleMessage is a console API call or uncaught exception seen on a page.
type ConsoleMessage struct {
	Type string `json:"type"` // "log", "error", "warning", ... or "exception"
	Text string `json:"text"`
}

const (
	consoleEvent   = "Runtime.consoleAPICalled"
	exceptionEvent = "Runtime.exceptionThrown"
)

// CaptureConsole streams console messages and uncaught exceptions from the
// page until stop is called or the client closes. The channel is closed on
// either. Messages are dropped when the reader falls behind.
func (p *Page) CaptureConsole() (<-chan ConsoleMessage, func()) {
	consoleCh := p.client.subscribeEvent(p.sessionID, consoleEvent)
	exceptionCh := p.client.subscribeEvent(p.sessionID, exceptionEvent)

	output := make(chan ConsoleMessage, 100)
	done := make(chan struct{})
	var stopOnce sync.Once

	stop := func() {
		stopOnce.Do(func() {
			close(done)
			p.client.unsubscribeEvent(p.sessionID, consoleEvent, consoleCh)
			p.client.unsubscribeEvent(p.sessionID, exceptionEvent, exceptionCh)
		})
	}

	go func() {
		defer close(output)
		for {
			var msg ConsoleMessage
			select {
			case params, ok := <-consoleCh:
				if !ok {
					return
				}
				m, err := parseConsoleEvent(params)
				if err != nil {
					continue
				}
				msg = m
			case params, ok := <-exceptionCh:
				if !ok {
					return
				}
				m, err := parseExceptionEvent(params)
				if err != nil {
					continue
				}
				msg = m
			case <-done:
				return
			case <-p.client.closeCh:
				return
			}

			select {
			case output <- msg:
			default:
			}
		}
	}()

	return output, stop
}

func parseConsoleEvent(params json.RawMessage) (ConsoleMessage, error) {
	var event struct {
		Type string         `json:"type"`
		Args []remoteObject `json:"args"`
	}
	if err := json.Unmarshal(params, &event); err != nil {
		return ConsoleMessage{}, err
	}

	parts := make([]string, 0, len(event.Args))
	for _, arg := range event.Args {
		switch {
		case arg.Value != nil:
			parts = append(parts, fmt.Sprintf("%v", arg.Value))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return ConsoleMessage{Type: event.Type, Text: strings.Join(parts, " ")}, nil
}

func parseExceptionEvent(params json.RawMessage) (ConsoleMessage, error) {
	var event struct {
		ExceptionDetails exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(params, &event); err != nil {
		return ConsoleMessage{}, err
	}
	return ConsoleMessage{Type: "exception", Text: event.ExceptionDetails.err().Error()}, nil
}
