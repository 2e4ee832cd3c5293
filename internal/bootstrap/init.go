package bootstrap

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*
var templates embed.FS

type InitOptions struct {
	ConfigPath    string
	EnvPath       string
	TimetablePath string
}

type InitReport struct {
	ConfigPath    string
	EnvPath       string
	TimetablePath string
	Created       []string
	Skipped       []string
}

// Init writes starter files next to the bot. Existing files are never
// overwritten; they are reported as skipped.
func Init(opts InitOptions) (InitReport, error) {
	report := InitReport{
		ConfigPath:    strings.TrimSpace(opts.ConfigPath),
		EnvPath:       strings.TrimSpace(opts.EnvPath),
		TimetablePath: strings.TrimSpace(opts.TimetablePath),
	}
	if report.ConfigPath == "" {
		report.ConfigPath = "config.json"
	}
	if report.EnvPath == "" {
		report.EnvPath = ".env"
	}
	if report.TimetablePath == "" {
		report.TimetablePath = "timetable.yaml"
	}

	files := []struct {
		template string
		path     string
		perm     os.FileMode
	}{
		{"templates/config.json", report.ConfigPath, 0o644},
		// .env holds the Teams password.
		{"templates/env.example", report.EnvPath, 0o600},
		{"templates/timetable.yaml", report.TimetablePath, 0o644},
	}
	for _, f := range files {
		data, err := templates.ReadFile(f.template)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", f.template, err)
		}
		if err := writeTemplateFile(f.path, f.perm, data, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Template returns an embedded starter file by base name.
func Template(name string) ([]byte, error) {
	return templates.ReadFile("templates/" + name)
}

func writeTemplateFile(path string, perm os.FileMode, data []byte, report *InitReport) error {
	if _, err := os.Stat(path); err == nil {
		report.Skipped = append(report.Skipped, path)
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("missing template for %s", path)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out := data
	if out[len(out)-1] != '\n' {
		out = append(append([]byte(nil), out...), '\n')
	}
	if err := os.WriteFile(path, out, perm); err != nil {
		return err
	}
	report.Created = append(report.Created, path)
	return nil
}
