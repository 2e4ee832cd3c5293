package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"meetbot/internal/botlog"
	"meetbot/internal/config"
	"meetbot/internal/timetable"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	envPath    string
	debug      bool

	cfg config.Config
	log *botlog.Logger

	stdin  *os.File
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func (a *app) load() error {
	if err := config.LoadDotEnv(a.envPath); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg.ApplyEnv(os.Getenv)

	opts := botlog.Options{
		Term:      a.errOut,
		TermColor: *a.cfg.Log.Color && botlog.TermColorEnabled(a.errOut),
		Debug:     a.debug || a.cfg.Log.Debug,
	}
	if p := strings.TrimSpace(a.cfg.Log.File); p != "" {
		f, err := botlog.OpenFile(p)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		opts.File = f
	}
	a.log = botlog.New(opts)
	return nil
}

func (a *app) close() {
	_ = a.log.Close()
}

func (a *app) openStore(ctx context.Context) (*timetable.SQLiteStore, error) {
	store, err := timetable.OpenSQLite(a.cfg.Timetable.DBPath, a.log)
	if err != nil {
		return nil, err
	}
	if err := store.CreateIfAbsent(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.log.Debugf("created (or verified) timetable database %s", store.Path())
	return store, nil
}

// readLine reads one trimmed line from stdin; ok is false at EOF.
func (a *app) readLine(prompt string) (string, bool) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}
