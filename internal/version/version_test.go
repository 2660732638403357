package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	cases := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{name: "all fields provided", version: "v1.2.3", commit: "4fa1c0d", date: "2026-08-01T10:00:00Z", want: "v1.2.3 (4fa1c0d) 2026-08-01T10:00:00Z"},
		{name: "unknown vcs fields omitted", version: "v1.2.3", commit: "unknown", date: "unknown", want: "v1.2.3"},
		{name: "whitespace trimmed", version: "  v2.0.0  ", commit: " abc ", date: "unknown", want: "v2.0.0 (abc)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := String(tc.version, tc.commit, tc.date); got != tc.want {
				t.Fatalf("String(%q, %q, %q) = %q, want %q", tc.version, tc.commit, tc.date, got, tc.want)
			}
		})
	}
}

func TestStringNeverEmptyOrPlaceholder(t *testing.T) {
	got := String("", "unknown", "unknown")
	if got == "" {
		t.Fatal("empty inputs must still produce a version line")
	}
	if strings.Contains(got, "unknown") {
		t.Fatalf("placeholders leaked into %q", got)
	}
}
