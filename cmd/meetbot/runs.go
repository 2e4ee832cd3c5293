package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meetbot/internal/scheduler"
)

func NewRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the most recent scheduled runs from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(a.cfg.Scheduler.RunLog)
			if path == "" {
				return errors.New("scheduler.run_log is not configured")
			}
			recs, err := scheduler.ReadRunRecords(path)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(a.out, "No runs recorded yet.")
				return nil
			}
			if limit > 0 && len(recs) > limit {
				recs = recs[len(recs)-limit:]
			}
			for _, r := range recs {
				result := r.State
				if r.Status != scheduler.StatusRan {
					result = r.Status
				}
				line := fmt.Sprintf("%s  %-8s %-10s %s / %s", r.ScheduledAt.Local().Format("2006-01-02 15:04"), result, strings.Join(r.Outcomes, ","), r.Team, r.Meeting)
				if r.Error != "" {
					line += "  (" + r.Error + ")"
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many records (0 for all)")
	return cmd
}
