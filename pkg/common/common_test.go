package common

import (
	"strings"
	"testing"
)

func TestProgramVersion(t *testing.T) {
	v := ProgramVersion{Version: "1.2.0", CommitHash: "abc123", BuildTime: "2026-10-19"}

	if got, want := v.Short(), "v1.2.0-abc123-2026-10-19"; got != want {
		t.Errorf("Short() = %q, want %q", got, want)
	}
	if !strings.Contains(v.String(), "Commit: abc123") {
		t.Errorf("String() = %q, want the commit hash", v.String())
	}
	if !strings.Contains(v.UserAgent(), "crawl-a-million-miles/1.2.0") {
		t.Errorf("UserAgent() = %q, want the version", v.UserAgent())
	}
}

func TestTerminalWidth(t *testing.T) {
	if got := TerminalWidth(); got <= 0 {
		t.Errorf("TerminalWidth() = %d, want > 0", got)
	}
}
