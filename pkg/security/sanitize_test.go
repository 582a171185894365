package security

import (
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"simple string", "hello world", "hello world"},
		{"whitespace trim", "  hello world  ", "hello world"},
		{"null bytes removed", "hello\x00world", "helloworld"},
		{"multiple null bytes", "\x00test\x00input\x00", "testinput"},
		{"preserves newlines", "hello\nworld", "hello\nworld"},
		{"preserves tabs", "hello\tworld", "hello\tworld"},
		{"removes control chars", "hello\x01\x02\x03world", "helloworld"},
		{"unicode preserved", "hello 世界", "hello 世界"},
		{"emoji preserved", "hello 👋", "hello 👋"},
		{"mixed content", "  hello\x00\x01world  ", "helloworld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple filename", "receipt.jpg", "receipt.jpg"},
		{"path traversal stripped", "../../etc/passwd", "passwd"},
		{"windows path stripped", "C:\\photos\\proof.png", "proof.png"},
		{"spaces replaced", "my receipt.jpg", "my_receipt.jpg"},
		{"special chars replaced", "pro>of<.jpg", "pro_of_.jpg"},
		{"empty becomes file", "", "file"},
		{"dot becomes file", ".", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := SanitizeFilename(tt.input); result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single spaces unchanged", "blue door", "blue door"},
		{"runs collapsed", "blue    door", "blue door"},
		{"tabs and newlines collapsed", "blue\t\n door", "blue door"},
		{"trimmed", "  blue door  ", "blue door"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NormalizeWhitespace(tt.input); result != tt.expected {
				t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		expected  string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exactly max", "hello", 5, "hello"},
		{"longer than max", "hello world", 5, "hello"},
		{"zero max", "hello", 0, ""},
		{"unicode safe", "héllo wörld", 5, "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := TruncateString(tt.input, tt.maxLength); result != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLength, result, tt.expected)
			}
		})
	}
}
