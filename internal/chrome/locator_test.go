package chrome

import (
	"fmt"
	"testing"
)

func TestMatchText(t *testing.T) {
	tests := []struct {
		value string
		query string
		exact bool
		want  bool
	}{
		{"Enter", "Enter", false, true},
		{"Enter", "enter", false, true},
		{"Enter", "enter", true, false},
		{"Enter the club", "enter", false, true},
		{"Enter the club", "Enter", true, false},
		{"  Velvet \n Rope   Entry ", "Velvet Rope Entry", true, true},
		{"Validating...", "validating", false, true},
		{"Select client browsing experience", "client browsing", false, true},
		{"Invite Code", "Invite Code", false, true},
		{"", "anything", false, false},
		{"anything", "", false, true},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%q~%q/exact=%t", tt.value, tt.query, tt.exact)
		t.Run(name, func(t *testing.T) {
			if got := matchText(tt.value, tt.query, tt.exact); got != tt.want {
				t.Errorf("matchText(%q, %q, %t) = %t, want %t", tt.value, tt.query, tt.exact, got, tt.want)
			}
		})
	}
}

func TestLocator_String(t *testing.T) {
	p := &Page{}

	tests := []struct {
		loc  *Locator
		want string
	}{
		{p.GetByLabel("Invite Code"), `getByLabel("Invite Code")`},
		{p.GetByRole("button", "Enter"), `getByRole("button", name="Enter")`},
		{p.GetByRole("heading", ""), `getByRole("heading")`},
		{p.GetByText("Validating..."), `getByText("Validating...")`},
		{p.GetByText("Access Granted").Exact(), `getByText("Access Granted").exact()`},
	}

	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLocator_ExactReturnsCopy(t *testing.T) {
	p := &Page{}
	loose := p.GetByText("Enter")
	strict := loose.Exact()

	if loose.exact {
		t.Error("Exact modified the original locator")
	}
	if !strict.exact {
		t.Error("Exact copy is not exact")
	}
	if strict.page != p {
		t.Error("Exact copy lost its page")
	}
}
