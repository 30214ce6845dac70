package inspection

import "testing"

func TestDisplayLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"THE_MATRIX", "The Matrix"},
		{"BLADE_RUNNER_2049", "Blade Runner 2049"},
		{"Inception", "Inception"},
		{"The Dark Knight", "The Dark Knight"},
		{"lower_case_label", "Lower Case Label"},
		{"  SPACED__OUT  ", "Spaced Out"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DisplayLabel(tc.raw); got != tc.want {
			t.Errorf("DisplayLabel(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestOutputDirName(t *testing.T) {
	if got := OutputDirName("THE_MATRIX"); got != "The Matrix" {
		t.Fatalf("OutputDirName = %q", got)
	}
	if got := OutputDirName(""); got != "Untitled Disc" {
		t.Fatalf("empty label dir = %q", got)
	}
	if got := OutputDirName("A/B:C"); got == "A/B:C" {
		t.Fatalf("separators not sanitized: %q", got)
	}
}

func TestOutputFileName(t *testing.T) {
	if got := OutputFileName("THE_MATRIX", 1); got != "The Matrix - Title 01.mkv" {
		t.Fatalf("OutputFileName = %q", got)
	}
	if got := OutputFileName("", 12); got != "Untitled Disc - Title 12.mkv" {
		t.Fatalf("OutputFileName fallback = %q", got)
	}
}
