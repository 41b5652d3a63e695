// Package version derives the reported build version: an -ldflags override,
// else the VCS revision from build info, else "dev".
package version

import "runtime/debug"

const appName = "glpi-metrics"

// commitOverride is set via -ldflags for builds without a .git directory.
var commitOverride string

// Full returns "glpi-metrics/<short-commit>" for startup logging and
// User-Agent strings.
func Full() string {
	return appName + "/" + commit()
}

func commit() string {
	if commitOverride != "" {
		return short(commitOverride)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
