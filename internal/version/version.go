// Package version renders the version line the acichat binaries print for
// --version.
package version

import (
	"runtime/debug"
	"strings"
)

// String combines the -ldflags-injected version, commit, and date into one
// line, e.g. "v1.2.3 (4fa1c0d) 2026-08-01T10:00:00Z". Values left at their
// placeholders ("dev", "unknown", empty) fall back to the module version
// and VCS metadata recorded in the Go build info; anything still unknown
// after that is simply omitted.
func String(version, commit, date string) string {
	v := strings.TrimSpace(version)
	c := strings.TrimSpace(commit)
	d := strings.TrimSpace(date)

	if info, ok := debug.ReadBuildInfo(); ok {
		if isPlaceholder(v, "dev", "(devel)") {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
		if isPlaceholder(c, "unknown") {
			c = buildSetting(info, "vcs.revision", c)
		}
		if isPlaceholder(d, "unknown") {
			d = buildSetting(info, "vcs.time", d)
		}
	}

	var line strings.Builder
	if v == "" {
		v = "dev"
	}
	line.WriteString(v)
	if c != "" && c != "unknown" {
		line.WriteString(" (")
		line.WriteString(c)
		line.WriteString(")")
	}
	if d != "" && d != "unknown" {
		line.WriteString(" ")
		line.WriteString(d)
	}
	return line.String()
}

func isPlaceholder(v string, placeholders ...string) bool {
	if v == "" {
		return true
	}
	for _, p := range placeholders {
		if v == p {
			return true
		}
	}
	return false
}

func buildSetting(info *debug.BuildInfo, key, fallback string) string {
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value
		}
	}
	return fallback
}
