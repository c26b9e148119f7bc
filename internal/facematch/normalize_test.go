package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan Novák", "jan novak"},
		{"jan-novak", "jan novak"},
		{"JOHN DOE", "john doe"},
		{"jan-novák", "jan novak"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		rollNo   string
		query    string
		expected bool
	}{
		{"empty query", "Jan Novák", "A-17", "", true},
		{"name prefix", "Jan Novák", "A-17", "jan", true},
		{"diacritics ignored", "Jan Novák", "A-17", "novak", true},
		{"roll number", "Jan Novák", "CS2024-017", "cs2024", true},
		{"extra spaces", "Jan Novák", "", "  jan   novak ", true},
		{"no match", "Jan Novák", "A-17", "petr", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesQuery(tt.display, tt.rollNo, tt.query); got != tt.expected {
				t.Errorf("MatchesQuery(%q, %q, %q) = %v, want %v", tt.display, tt.rollNo, tt.query, got, tt.expected)
			}
		})
	}
}
