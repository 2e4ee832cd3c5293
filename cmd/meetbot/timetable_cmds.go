package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetbot/internal/botlog"
	"meetbot/internal/entryui"
	"meetbot/internal/timetable"
)

func NewAddCmd(a *app) *cobra.Command {
	var ui string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add meeting entries to the timetable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), a, ui)
		},
	}
	cmd.Flags().StringVar(&ui, "ui", "", "entry interface: tui or plain (default tui on a terminal)")
	return cmd
}

func runAdd(ctx context.Context, a *app, ui string) error {
	mode, err := entryui.ParseMode(ui)
	if err != nil {
		return err
	}
	tty := entryui.IsTerminal(a.stdin, a.out)
	if strings.TrimSpace(ui) == "" && !tty {
		mode = entryui.ModePlain
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	save := func(e timetable.Entry) error {
		return store.Insert(ctx, e)
	}
	var saved int
	if mode == entryui.ModeTUI {
		saved, err = entryui.RunForm(ctx, a.stdin, a.out, save)
	} else {
		saved, err = entryui.RunPlain(a.in, a.out, save)
	}
	if saved > 0 {
		a.log.Infof("added %d timetable entries", saved)
	}
	return err
}

func NewListCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the timetable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), a, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

func runList(ctx context.Context, a *app, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "table" && format != "yaml" {
		return fmt.Errorf("unknown format %q (use table or yaml)", format)
	}
	if !timetable.Exists(a.cfg.Timetable.DBPath) {
		fmt.Fprintln(a.out, "No timetable found. Please add classes first.")
		return nil
	}
	store, err := timetable.OpenSQLite(a.cfg.Timetable.DBPath, a.log)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if format == "yaml" {
		return timetable.WriteYAML(a.out, entries)
	}
	entryui.RenderTable(a.out, entries, entryui.IsTerminal(a.stdin, a.out))
	return nil
}

func NewImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Add every entry from a YAML timetable file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := timetable.LoadYAML(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no entries in " + args[0])
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			for _, e := range entries {
				if err := store.Insert(cmd.Context(), e); err != nil {
					return fmt.Errorf("insert %s: %w", e, err)
				}
				if e.Inverted() {
					a.log.Warnf("%s ends at or before it starts; it will be left immediately", e)
				}
			}
			fmt.Fprintf(a.out, "Imported %d entries.\n", len(entries))
			return nil
		},
	}
}

func NewNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next meeting due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !timetable.Exists(a.cfg.Timetable.DBPath) {
				fmt.Fprintln(a.out, "No timetable found. Please add meetings first.")
				return nil
			}
			store, err := timetable.OpenSQLite(a.cfg.Timetable.DBPath, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			loc, err := a.cfg.Scheduler.Location()
			if err != nil {
				return err
			}
			now := time.Now().In(loc)
			a.log.Logf(botlog.KindSched, "looking for the next upcoming meeting today")
			e, ok, err := store.NextDue(cmd.Context(), timetable.DayOf(now.Weekday()), timetable.ClockOf(now))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "No more meetings scheduled for today.")
				return nil
			}
			fmt.Fprintf(a.out, "Next meeting: Team='%s', Meeting='%s' at %s\n", e.Team, e.Meeting, e.Start)
			return nil
		},
	}
}
