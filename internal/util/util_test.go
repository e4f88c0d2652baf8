package util

import (
	"testing"
	"time"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStrftimeToLayout(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"date", "%Y-%m-%d", "2006-01-02"},
		{"date and time", "%Y-%m-%d %H:%M:%S", "2006-01-02 15:04:05"},
		{"month name", "%d %b %Y", "02 Jan 2006"},
		{"twelve hour", "%I:%M %p", "03:04 PM"},
		{"shorthands", "%F %T", "2006-01-02 15:04:05"},
		{"literal percent", "100%%", "100%"},
		{"unknown directive kept", "%Q", "%Q"},
		{"trailing percent", "%Y%", "2006%"},
		{"no directives", "T+", "T+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StrftimeToLayout(tt.input)
			if result != tt.expected {
				t.Errorf("StrftimeToLayout(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStrftimeToLayout_Formats(t *testing.T) {
	ts := time.Date(2031, 7, 4, 18, 5, 9, 0, time.UTC)

	got := ts.Format(StrftimeToLayout("%Y-%m-%d"))
	if got != "2031-07-04" {
		t.Errorf("got %q", got)
	}

	got = ts.Format(StrftimeToLayout("%B %e, %H:%M"))
	if got != "July  4, 18:05" {
		t.Errorf("got %q", got)
	}
}
