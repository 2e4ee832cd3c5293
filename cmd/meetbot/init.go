package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meetbot/internal/bootstrap"
	"meetbot/internal/config"
)

func NewInitCmd(a *app) *cobra.Command {
	var timetablePath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write starter config.json, .env and timetable.yaml files",
		Args:  cobra.NoArgs,
		// init must work before a config exists.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := bootstrap.Init(bootstrap.InitOptions{
				ConfigPath:    config.ResolvePath(a.configPath),
				EnvPath:       a.envPath,
				TimetablePath: timetablePath,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "init complete")

			skipped := make(map[string]bool, len(report.Skipped))
			for _, p := range report.Skipped {
				skipped[p] = true
			}
			printStatus := func(label, path string) {
				status := "created"
				if skipped[path] {
					status = "exists"
				}
				fmt.Fprintf(a.out, "%s: %s (%s)\n", label, strings.TrimSpace(path), status)
			}
			printStatus("config", report.ConfigPath)
			printStatus("env", report.EnvPath)
			printStatus("timetable", report.TimetablePath)
			fmt.Fprintf(a.out, "next: fill in %s, then run meetbot import %s\n", report.EnvPath, report.TimetablePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&timetablePath, "timetable", "timetable.yaml", "where to write the example timetable")
	return cmd
}
