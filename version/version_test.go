package version

import (
	"strings"
	"testing"
)

func restore(t *testing.T) {
	v, c, b := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = v, c, b })
}

func TestGetDefaults(t *testing.T) {
	restore(t)
	Version, Commit, BuildTime = "dev", "", ""

	info := Get()
	if info.Version == "" {
		t.Fatal("expected a version")
	}
	if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("expected runtime details, got %+v", info)
	}
	if info.Version == "dev" && info.Release {
		t.Error("dev should not be a release")
	}
}

func TestGetFromLdflags(t *testing.T) {
	restore(t)
	Version, Commit, BuildTime = "1.0.0", "abc1234def", "2024-01-15T10:30:00Z"

	info := Get()
	if info.Version != "1.0.0" {
		t.Errorf("expected 1.0.0, got %q", info.Version)
	}
	if info.Commit != "abc1234" {
		t.Errorf("expected commit truncated to abc1234, got %q", info.Commit)
	}
	if info.BuildDate.Year() != 2024 {
		t.Errorf("expected build year 2024, got %d", info.BuildDate.Year())
	}
}

func TestGetDirtyVersion(t *testing.T) {
	restore(t)
	Version = "1.0.0-dirty"

	if Get().Release {
		t.Error("dirty version should not be a release")
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", Commit: "abc1234"}, "1.0.0-abc1234"},
		{Info{Version: "1.0.0", Commit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestString(t *testing.T) {
	restore(t)
	Version, Commit, BuildTime = "1.0.0", "abc1234", "2024-01-15T10:30:00Z"

	s := Get().String()
	for _, want := range []string{"1.0.0", "abc1234", "/", "built 2024-01-15"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}
}
