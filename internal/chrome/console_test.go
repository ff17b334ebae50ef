package chrome

import (
	"testing"
)

func TestParseConsoleEvent(t *testing.T) {
	msg, err := parseConsoleEvent([]byte(`{"type":"warning","args":[{"type":"string","value":"slow"},{"type":"object","description":"Object"}]}`))
	if err != nil {
		t.Fatalf("parseConsoleEvent: %v", err)
	}
	if msg.Type != "warning" || msg.Text != "slow Object" {
		t.Errorf("got %+v", msg)
	}

	msg, err = parseExceptionEvent([]byte(`{"exceptionDetails":{"text":"Uncaught","exception":{"type":"object","description":"Error: boom"}}}`))
	if err != nil {
		t.Fatalf("parseExceptionEvent: %v", err)
	}
	if msg.Type != "exception" || msg.Text != "JS exception: Error: boom" {
		t.Errorf("got %+v", msg)
	}
}
