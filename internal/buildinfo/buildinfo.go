// Package buildinfo reports the version of the running techtips binary.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Set through -ldflags "-X github.com/euforicio/techtips/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Summary returns "version (commit date)". Missing ldflags values are filled
// from the VCS stamp the go tool embeds in module builds.
func Summary() string {
	version, commit, date := Version, Commit, Date
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "" || version == "dev" {
			if v := info.Main.Version; v != "" && v != "(devel)" {
				version = v
			}
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "" {
					commit = shortRevision(setting.Value)
				}
			case "vcs.time":
				if date == "" {
					date = setting.Value
				}
			}
		}
	}
	if version == "" {
		version = "dev"
	}

	var meta []string
	if commit != "" {
		meta = append(meta, commit)
	}
	if date != "" {
		meta = append(meta, date)
	}
	if len(meta) == 0 {
		return version
	}
	return version + " (" + strings.Join(meta, " ") + ")"
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
