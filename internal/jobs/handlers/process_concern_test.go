package handlers

import (
	"strings"
	"testing"
)

func TestTitleFromTranscript(t *testing.T) {
	short := "May sunog po sa kanto ng Rizal"
	if got := titleFromTranscript(short); got != short {
		t.Errorf("short transcript: got %q", got)
	}

	messy := "  There   is\na fire \t near the market  "
	if got := titleFromTranscript(messy); got != "There is a fire near the market" {
		t.Errorf("whitespace not collapsed: got %q", got)
	}

	long := strings.Repeat("flooding near the bridge ", 10)
	got := titleFromTranscript(long)
	if len(got) > 84 { // 80 chars plus the ellipsis rune
		t.Errorf("long title not truncated: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated title missing ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "…"), " ") {
		t.Errorf("truncation left a trailing space: %q", got)
	}

	// A single unbroken token gets a hard cut.
	unbroken := strings.Repeat("a", 200)
	got = titleFromTranscript(unbroken)
	if !strings.HasSuffix(got, "…") || len(got) > 84 {
		t.Errorf("unbroken token: got %d chars", len(got))
	}
}
