package scraper

import "testing"

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"pagead2.googlesyndication.com", true},
		{"WWW.GOOGLE-ANALYTICS.COM", true},
		{"cse.google.com", false},
		{"telegramsearchengine.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAdDomain(tt.host); got != tt.want {
			t.Errorf("isAdDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
