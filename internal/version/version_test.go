package version

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	saved := GitCommit
	defer func() { GitCommit = saved }()

	GitCommit = "unknown"
	info := GetVersionInfo("csi-monitor")
	if !strings.HasPrefix(info, "csi-monitor version "+Version) {
		t.Errorf("Unexpected version info %q", info)
	}
	if strings.Contains(info, "commit") {
		t.Errorf("Unknown commit should not be printed: %q", info)
	}
	if GetFullVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetFullVersion())
	}

	GitCommit = "0123456789abcdef"
	if !strings.Contains(GetVersionInfo("csi-monitor"), "(commit 0123456)") {
		t.Error("Expected short commit in version info")
	}
	if GetFullVersion() != Version+"-0123456" {
		t.Errorf("Unexpected full version %s", GetFullVersion())
	}
}
