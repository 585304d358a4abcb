package validator

import (
	"testing"
	"time"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	valid := []string{"2023-01-01", "2000-12-31"}
	invalid := []string{"2023-13-01", "2023-01-32", "2023/01/01", "01-01-2023", ""}
	for _, s := range valid {
		_, ok := IsValidDate(s)
		if !ok {
			t.Errorf("IsValidDate(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		_, ok := IsValidDate(s)
		if ok {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

func TestParseDateIn(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got, ok := ParseDateIn(" 2024-09-10 ", loc)
	if !ok {
		t.Fatalf("ParseDateIn() = false, want true")
	}
	want := time.Date(2024, 9, 10, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("ParseDateIn() = %v, want %v", got, want)
	}
}

func TestParseGermanDate(t *testing.T) {
	loc := time.UTC
	valid := map[string]time.Time{
		"10.09.2024":   time.Date(2024, 9, 10, 0, 0, 0, 0, loc),
		"1.9.2024":     time.Date(2024, 9, 1, 0, 0, 0, 0, loc),
		" 29.02.2024 ": time.Date(2024, 2, 29, 0, 0, 0, 0, loc),
	}
	invalid := []string{"", "2024-09-10", "31.02.2024", "00.01.2024", "10.13.2024", "10.09.24", "abc"}

	for s, want := range valid {
		got, ok := ParseGermanDate(s, loc)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseGermanDate(%q) = %v, %v, want %v", s, got, ok, want)
		}
	}
	for _, s := range invalid {
		if _, ok := ParseGermanDate(s, loc); ok {
			t.Errorf("ParseGermanDate(%q) = true, want false", s)
		}
	}
}

func TestIsInSlice(t *testing.T) {
	slice := []string{"a", "b", "c"}
	if !IsInSlice("a", slice) {
		t.Errorf("IsInSlice('a') = false, want true")
	}
	if IsInSlice("d", slice) {
		t.Errorf("IsInSlice('d') = true, want false")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "start_date", Message: "invalid"},
		{Field: "weeks", Message: "required"},
	}
	got := errs.Error()
	want := "start_date: invalid; weeks: required"
	if got != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_ToMap(t *testing.T) {
	errs := ValidationErrors{
		{Field: "start_date", Message: "invalid"},
		{Field: "weeks", Message: "required"},
	}
	got := errs.ToMap()
	want := map[string]string{"start_date": "invalid", "weeks": "required"}
	if len(got) != len(want) {
		t.Errorf("ValidationErrors.ToMap() length = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ValidationErrors.ToMap()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
