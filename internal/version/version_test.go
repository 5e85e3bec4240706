package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"no vcs info", nil, "dev"},
		{
			"short hash",
			[]debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			"0123456",
		},
		{
			"dirty tree",
			[]debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef1234"},
				{Key: "vcs.modified", Value: "true"},
			},
			"abcdef1-dirty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fromBuildInfo(&debug.BuildInfo{Settings: tt.settings}, true)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := fromBuildInfo(nil, false); got != "dev" {
		t.Errorf("expected dev without build info, got %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "LessonReportBot/") {
		t.Errorf("unexpected user agent %q", ua)
	}
}
