package exitcode

import "testing"

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{Conflicts, "Conflicts or errors require human action"},
		{Fatal, "Fatal error"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		if got := String(tt.code); got != tt.expected {
			t.Errorf("String(%d) = %q, want %q", tt.code, got, tt.expected)
		}
	}
}

func TestCodeValues(t *testing.T) {
	// These values are a published contract with CI callers.
	if Success != 0 || Conflicts != 1 || Fatal != 2 {
		t.Errorf("exit code values changed: Success=%d Conflicts=%d Fatal=%d", Success, Conflicts, Fatal)
	}
}
