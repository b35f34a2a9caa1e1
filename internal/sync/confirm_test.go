package sync

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleConfirmer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "yes\n", true},
		{"y", "y\n", true},
		{"uppercase", "YES\n", true},
		{"padded", "  y  \n", true},
		{"no", "no\n", false},
		{"empty line denies", "\n", false},
		{"garbage denies", "maybe\n", false},
		{"eof denies", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			c := NewConsoleConfirmer(strings.NewReader(tt.input), out)
			if got := c.Confirm("Delete client?"); got != tt.want {
				t.Errorf("Confirm = %t, want %t", got, tt.want)
			}
			if !strings.Contains(out.String(), "Delete client?") {
				t.Errorf("prompt not written: %q", out.String())
			}
			if !strings.Contains(out.String(), "[y/N]") {
				t.Errorf("default-deny hint missing: %q", out.String())
			}
		})
	}
}
