package util

import (
	"strings"
	"testing"
)

func TestRandomString(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"short", 8},
		{"medium", 16},
		{"long", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RandomString(tt.length)
			if len(result) != tt.length {
				t.Errorf("Expected length %d, got %d", tt.length, len(result))
			}
		})
	}
}

func TestRandomStringUniqueness(t *testing.T) {
	s1 := RandomString(32)
	s2 := RandomString(32)

	if s1 == s2 {
		t.Error("Two random strings should differ")
	}
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	if v == "" {
		t.Error("Version should not be empty")
	}
	if strings.ContainsAny(v, " \n\t") {
		t.Errorf("Version should be trimmed, got %q", v)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	nv := GetNameAndVersion()
	if !strings.HasPrefix(nv, Name) {
		t.Errorf("Expected name prefix in %q", nv)
	}
}

func TestPrettyPrint(t *testing.T) {
	out := PrettyPrint(map[string]int{"a": 1})
	if !strings.Contains(out, "\"a\"") {
		t.Errorf("Expected indented json, got %q", out)
	}
}
