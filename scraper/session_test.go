package scraper

import "testing"

func TestLandedAuthenticated(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		loginForm bool
		want      bool
	}{
		{"course manager", "https://lms.example.com/course/manage", false, true},
		{"course manager with query", "https://lms.example.com/course/manage?page=2", false, true},
		{"login form on manager path", "https://lms.example.com/course/manage", true, false},
		{"login page", "https://lms.example.com/login", true, false},
		{"other page without form", "https://lms.example.com/learn/home", false, false},
		{"unparseable", "://", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := landedAuthenticated(tt.url, tt.loginForm); got != tt.want {
				t.Errorf("landedAuthenticated(%q, %v) = %v, want %v", tt.url, tt.loginForm, got, tt.want)
			}
		})
	}
}
