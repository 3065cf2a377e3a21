package backend

import "testing"

func TestValidateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://example.com", "https://example.com", true},
		{"  http://old.site/page  ", "http://old.site/page", true},
		{"", "", false},
		{"   ", "", false},
		{"not a url", "", false},
		{"example.com", "", false},
	}
	for _, tt := range tests {
		got, err := ValidateURL(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ValidateURL(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestValidateText(t *testing.T) {
	if _, err := ValidateText("", "Entry", 1, 10); err == nil || err.(*APIError).Message != "Entry is required" {
		t.Errorf("empty: %v", err)
	}
	if _, err := ValidateText("  a ", "Entry", 3, 10); err == nil || err.(*APIError).Message != "Entry must be at least 3 characters" {
		t.Errorf("short: %v", err)
	}
	if _, err := ValidateText("   ", "Entry", 1, 10); err == nil || err.(*APIError).Message != "Entry must be at least 1 character" {
		t.Errorf("blank: %v", err)
	}
	if _, err := ValidateText("abcdefghijk", "Entry", 1, 10); err == nil {
		t.Error("long text accepted")
	}
	if got, err := ValidateText(" ghost ", "", 1, 5000); err != nil || got != "ghost" {
		t.Errorf("valid = %q, %v", got, err)
	}
}

func TestValidateAPISelection(t *testing.T) {
	if ValidateAPISelection("weather", "") == nil {
		t.Error("missing api accepted")
	}
	if ValidateAPISelection("jokes", "jokes") == nil {
		t.Error("duplicate api accepted")
	}
	if err := ValidateAPISelection("weather", "jokes"); err != nil {
		t.Error(err)
	}
}
