package botlog

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesKindTaggedLines(t *testing.T) {
	var file, term bytes.Buffer
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := New(Options{File: &file, Term: &term, Now: func() time.Time { return at }})

	l.Logf(KindState, "entered %s", "joined")

	want := "[2026-03-02 09:00:00.000] [STATE] entered joined\n"
	if file.String() != want {
		t.Fatalf("unexpected file line: %q", file.String())
	}
	if term.String() != want {
		t.Fatalf("unexpected term line: %q", term.String())
	}
}

func TestLoggerDropsDebugUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{File: &buf})
	l.Debugf("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be dropped, got %q", buf.String())
	}

	l = New(Options{File: &buf, Debug: true})
	l.Debugf("shown")
	if !strings.Contains(buf.String(), "[DEBUG] shown") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestLoggerColorizesTerminalOnly(t *testing.T) {
	var file, term bytes.Buffer
	l := New(Options{File: &file, Term: &term, TermColor: true})
	l.Errorf("boom")
	if strings.Contains(file.String(), "\x1b[") {
		t.Fatalf("file output must not contain ANSI codes: %q", file.String())
	}
	if !strings.HasPrefix(term.String(), kindColors[KindError]) || !strings.HasSuffix(term.String(), ansiReset) {
		t.Fatalf("expected red terminal output, got %q", term.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("nothing")
	if err := l.Close(); err != nil {
		t.Fatalf("Close on nil logger failed: %v", err)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("  MATHS 101\n - Lecture  ", 40); got != "MATHS 101 - Lecture" {
		t.Fatalf("unexpected preview: %q", got)
	}
	long := strings.Repeat("a", 100)
	got := Preview(long, 40)
	if len(got) != 40 || !strings.HasSuffix(got, " ... (truncated)") {
		t.Fatalf("unexpected truncated preview: %q (%d)", got, len(got))
	}
}

func TestLoggerSkipsMissingWriters(t *testing.T) {
	var term bytes.Buffer
	l := New(Options{Term: &term})
	l.Infof("only terminal")
	l.Infof("   ")
	if strings.Count(term.String(), "\n") != 1 || !strings.Contains(term.String(), "[INFO] only terminal") {
		t.Fatalf("unexpected terminal output: %q", term.String())
	}
}
