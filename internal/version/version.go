// Package version provides version information for the csi-monitor tools
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables that can be set via ldflags, e.g.
// -ldflags "-X csi-monitor/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	// Version is the release number
	Version = "0.3.0"

	// GitCommit is the git sha1 that was compiled
	GitCommit = "unknown"

	// BuildDate is the date the binary was built
	BuildDate = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// GetBuildInfo returns complete build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// shortCommit trims a full sha1 to seven characters
func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

// GetFullVersion returns the version with the short commit appended when known
func GetFullVersion() string {
	if GitCommit != "unknown" {
		return fmt.Sprintf("%s-%s", Version, shortCommit(GitCommit))
	}
	return Version
}

// GetVersionInfo returns the multi-line text printed by --version
func GetVersionInfo(appName string) string {
	info := GetBuildInfo()

	result := fmt.Sprintf("%s version %s", appName, info.Version)
	if info.GitCommit != "unknown" {
		result += fmt.Sprintf(" (commit %s)", shortCommit(info.GitCommit))
	}
	if info.BuildDate != "unknown" {
		result += fmt.Sprintf("\nBuilt: %s", info.BuildDate)
	}
	result += fmt.Sprintf("\nGo: %s", info.GoVersion)
	result += fmt.Sprintf("\nPlatform: %s", info.Platform)

	return result
}
