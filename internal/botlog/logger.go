package botlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

type Kind string

const (
	KindDebug  Kind = "DEBUG"
	KindInfo   Kind = "INFO"
	KindWarn   Kind = "WARN"
	KindError  Kind = "ERROR"
	KindState  Kind = "STATE"
	KindNotify Kind = "NOTIFY"
	KindSched  Kind = "SCHED"
)

const timestampLayout = "2006-01-02 15:04:05.000"

type Options struct {
	// File receives every line without color. Nil skips it.
	File io.Writer
	// Term echoes lines, colored when TermColor is set. Nil skips it.
	Term      io.Writer
	TermColor bool
	Debug     bool
	Now       func() time.Time
}

// Logger writes "[ts] [KIND] msg" lines. A nil *Logger discards everything.
type Logger struct {
	mu   sync.Mutex
	opts Options
}

func New(opts Options) *Logger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Logger{opts: opts}
}

// OpenFile opens path for appending, creating parent directories.
func OpenFile(path string) (*os.File, error) {
	p := strings.TrimSpace(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.opts.File.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// TermColorEnabled reports whether w is a color-capable terminal, honoring
// NO_COLOR and TERM=dumb.
func TermColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := strings.TrimSpace(os.Getenv("TERM")); t == "" || t == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && f != nil && term.IsTerminal(int(f.Fd()))
}

func (l *Logger) Logf(kind Kind, format string, args ...any) {
	if l == nil || (kind == KindDebug && !l.opts.Debug) {
		return
	}
	text := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	line := "[" + l.opts.Now().Format(timestampLayout) + "] [" + string(kind) + "] " + text + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.opts.File != nil {
		_, _ = io.WriteString(l.opts.File, line)
	}
	if l.opts.Term == nil {
		return
	}
	if code, ok := kindColors[kind]; ok && l.opts.TermColor {
		line = code + line + ansiReset
	}
	_, _ = io.WriteString(l.opts.Term, line)
}

func (l *Logger) Infof(format string, args ...any)  { l.Logf(KindInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Logf(KindWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Logf(KindError, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.Logf(KindDebug, format, args...) }

const ansiReset = "\x1b[0m"

var kindColors = map[Kind]string{
	KindDebug:  "\x1b[2m",
	KindInfo:   "\x1b[36m",
	KindWarn:   "\x1b[33m",
	KindError:  "\x1b[31m",
	KindState:  "\x1b[35m",
	KindNotify: "\x1b[1m\x1b[32m",
	KindSched:  "\x1b[32m",
}

const previewSuffix = " ... (truncated)"

// Preview flattens raw onto one line and cuts it to at most max bytes.
func Preview(raw string, max int) string {
	text := strings.Join(strings.Fields(raw), " ")
	switch {
	case max <= 0:
		return ""
	case len(text) <= max:
		return text
	case max <= len(previewSuffix):
		return text[:max]
	default:
		return text[:max-len(previewSuffix)] + previewSuffix
	}
}
