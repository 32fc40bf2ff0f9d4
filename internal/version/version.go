// Package version reports build information for swatch. Release builds set
// the values through ldflags; plain `go install` builds fall back to the VCS
// stamp the toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const unknown = "unknown"

// Set with -ldflags "-X github.com/jmylchreest/swatch/internal/version.Version=x.y.z" and
// likewise for Commit and Date.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// Info is the payload of `swatch version` and GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo resolves the build information.
func GetInfo() Info {
	bi, _ := debug.ReadBuildInfo()
	return resolve(bi)
}

func resolve(bi *debug.BuildInfo) Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi == nil {
		return info
	}

	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == unknown {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String renders info on one line, e.g.
// "swatch version 1.2.3 (commit: 01234567, built: 2026-01-01T00:00:00Z, go1.25.1, linux/amd64)".
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "swatch version %s (", i.Version)
	if i.Commit != unknown {
		commit := i.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		if i.Modified {
			commit += "-dirty"
		}
		fmt.Fprintf(&b, "commit: %s, ", commit)
	}
	if i.Date != unknown {
		fmt.Fprintf(&b, "built: %s, ", i.Date)
	}
	fmt.Fprintf(&b, "%s, %s)", i.GoVersion, i.Platform)
	return b.String()
}

// String returns the human-readable version line for this binary.
func String() string {
	return GetInfo().String()
}

// Short returns the bare version.
func Short() string {
	return GetInfo().Version
}
