package date

import (
	"encoding/json"
	"testing"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Date
	}{
		{"2020-01-01", New(2020, 1, 1)},
		{"2025-7-1", New(2025, 7, 1)},
		{"28.08.2018", New(2018, 8, 28)},
		{"28/08/2018", New(2018, 8, 28)},
		{"18.12.11", New(2011, 12, 18)},
		{" 2020-02-29 ", New(2020, 2, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Today(t *testing.T) {
	for _, in := range []string{"today", "TODAY", " Today"} {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", in, err)
		}
		if got != Today() {
			t.Errorf("Parse(%q) = %v, want %v", in, got, Today())
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2020-13-01", "32.01.2020"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected an error", in)
		}
	}
}

func TestNew_Normalizes(t *testing.T) {
	if got, want := New(2024, 12, 32), New(2025, 1, 1); got != want {
		t.Errorf("New(2024, 12, 32) = %v, want %v", got, want)
	}
	if got, want := New(2025, 3, 1).Add(-1), New(2025, 2, 28); got != want {
		t.Errorf("Add(-1) = %v, want %v", got, want)
	}
}

func TestJSON(t *testing.T) {
	d := New(2020, 1, 1)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `"2020-01-01"` {
		t.Errorf("Marshal() = %s, want %q", raw, "2020-01-01")
	}
	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != d {
		t.Errorf("Unmarshal() = %v, want %v", back, d)
	}

	var zero Date
	if err := json.Unmarshal([]byte(`""`), &zero); err != nil || !zero.IsZero() {
		t.Errorf("Unmarshal(\"\") = %v, %v want zero date", zero, err)
	}
}
