package domain

import "testing"

func TestValidatorIsValid(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		expected bool
	}{
		{"valid", "example.com", true},
		{"subdomain", "sub.example.com", true},
		{"empty", "", false},
		{"spaces", "ex ample.com", false},
		{"path", "example.com/blog", false},
		{"userinfo", "user@example.com", false},
		{"too long", string(make([]byte, 254)), false},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := v.IsValid(tt.domain); result != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.domain, result, tt.expected)
			}
		})
	}
}

func TestNormalizerNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercase", "EXAMPLE.COM", "example.com"},
		{"spaces", "  example.com  ", "example.com"},
		{"root dot", "Example.com.", "example.com"},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := n.Normalize(tt.input); result != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
