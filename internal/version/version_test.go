package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	vcs := func(settings ...debug.BuildSetting) *debug.BuildInfo {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: settings}
	}

	tests := []struct {
		name       string
		ver        string
		commit     string
		info       *debug.BuildInfo
		wantVer    string
		wantCommit string
	}{
		{
			name:       "ldflags win",
			ver:        "v1.0.0",
			commit:     "abc1234",
			info:       vcs(debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffff"}),
			wantVer:    "v1.0.0",
			wantCommit: "abc1234",
		},
		{
			name: "vcs info",
			info: vcs(
				debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"},
				debug.BuildSetting{Key: "vcs.time", Value: "2026-01-02T10:00:00Z"},
			),
			wantVer:    "dev-20260102",
			wantCommit: "0123456",
		},
		{
			name: "dirty tree",
			info: vcs(
				debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"},
				debug.BuildSetting{Key: "vcs.modified", Value: "true"},
			),
			wantVer:    "dev-20260304-050607",
			wantCommit: "0123456-dirty",
		},
		{
			name:       "module version",
			info:       &debug.BuildInfo{Main: debug.Module{Version: "v0.2.1"}},
			wantVer:    "v0.2.1",
			wantCommit: "unknown",
		},
		{
			name:       "no build info",
			wantVer:    "dev-20260304-050607",
			wantCommit: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotVer, gotCommit := resolve(tt.ver, tt.commit, tt.info, now)
			if gotVer != tt.wantVer {
				t.Errorf("version = %q, want %q", gotVer, tt.wantVer)
			}
			if gotCommit != tt.wantCommit {
				t.Errorf("commit = %q, want %q", gotCommit, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) || !strings.Contains(got, "commit: "+Commit) {
		t.Errorf("Full() = %q", got)
	}
}
