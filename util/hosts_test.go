package util

import "testing"

func TestApiBase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://node.example.com", "http://node.example.com/api/"},
		{"http://node.example.com/", "http://node.example.com/api/"},
		{"http://node.example.com/api", "http://node.example.com/api/"},
		{"http://node.example.com/api/", "http://node.example.com/api/"},
		{"  http://node.example.com/api/  ", "http://node.example.com/api/"},
		{"", ""},
	}

	for _, tt := range tests {
		got := ApiBase(tt.input)
		if got != tt.expected {
			t.Errorf("ApiBase(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSiteBase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://node.example.com/api/", "http://node.example.com"},
		{"http://node.example.com/api", "http://node.example.com"},
		{"http://node.example.com/", "http://node.example.com"},
	}

	for _, tt := range tests {
		got := SiteBase(tt.input)
		if got != tt.expected {
			t.Errorf("SiteBase(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSameNetloc(t *testing.T) {
	if !SameNetloc("http://a.example.com/api/", "http://a.example.com/") {
		t.Error("Expected same netloc for differing paths")
	}

	if SameNetloc("http://a.example.com/", "http://b.example.com/") {
		t.Error("Expected different netlocs to compare false")
	}

	if SameNetloc("", "http://a.example.com/") {
		t.Error("Expected empty url to compare false")
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://node/api/authors/abc-123/", "abc-123"},
		{"http://node/api/authors/abc-123", "abc-123"},
		{"abc-123", "abc-123"},
		{"http://node/api/liked/9f8e/", "9f8e"},
	}

	for _, tt := range tests {
		got := LastPathSegment(tt.input)
		if got != tt.expected {
			t.Errorf("LastPathSegment(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSegmentAfter(t *testing.T) {
	seg, ok := SegmentAfter("http://node/api/authors/abc/entries/def/", "authors")
	if !ok || seg != "abc" {
		t.Errorf("SegmentAfter authors = %q (%v), expected 'abc'", seg, ok)
	}

	seg, ok = SegmentAfter("http://node/api/authors/abc/entries/def/", "entries")
	if !ok || seg != "def" {
		t.Errorf("SegmentAfter entries = %q (%v), expected 'def'", seg, ok)
	}

	_, ok = SegmentAfter("http://node/api/authors/abc/", "entries")
	if ok {
		t.Error("Expected missing marker to report not found")
	}
}

func TestNetlocBase(t *testing.T) {
	if got := NetlocBase("http://node.example.com/api/authors/x/"); got != "http://node.example.com" {
		t.Errorf("NetlocBase = %q", got)
	}

	if got := NetlocBase("not a url"); got != "" {
		t.Errorf("Expected empty netloc for garbage input, got %q", got)
	}
}
