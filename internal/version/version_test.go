package version

import (
	"strings"
	"testing"
)

func TestSetInfo(t *testing.T) {
	origVersion := Version
	origBuildTime := BuildTime
	origGitCommit := GitCommit
	origGoVersion := GoVersion
	defer func() {
		Version = origVersion
		BuildTime = origBuildTime
		GitCommit = origGitCommit
		GoVersion = origGoVersion
	}()

	SetInfo("1.2.3", "2026-08-23", "abc123", "go1.26")
	if Version != "1.2.3" {
		t.Errorf("Version = %s, want 1.2.3", Version)
	}
	if GitCommit != "abc123" {
		t.Errorf("GitCommit = %s, want abc123", GitCommit)
	}

	// Empty values keep the previous ones.
	SetInfo("", "", "", "")
	if Version != "1.2.3" {
		t.Errorf("Version = %s, want 1.2.3 after empty SetInfo", Version)
	}
}

func TestFormatStartupMessage(t *testing.T) {
	msg := FormatStartupMessage()
	if !strings.Contains(msg, Version) {
		t.Errorf("startup message %q does not contain version %q", msg, Version)
	}
}
