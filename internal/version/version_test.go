package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	tests := []struct {
		name        string
		info        *debug.BuildInfo
		ok          bool
		wantVersion string
		wantCommit  string
	}{
		{
			name: "tagged module with clean tree",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.2.3"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.modified", Value: "false"},
				},
			},
			ok:          true,
			wantVersion: "v1.2.3",
			wantCommit:  "0123456",
		},
		{
			name: "devel build with dirty tree",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			ok:          true,
			wantVersion: "",
			wantCommit:  "abc-dirty",
		},
		{
			name: "no build info",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = "", ""
			fromBuildInfo(func() (*debug.BuildInfo, bool) { return tt.info, tt.ok })
			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if !strings.Contains(Full(), "commit:") {
		t.Errorf("Full() = %q, should contain commit", Full())
	}
}
