package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meetbot/internal/appinfo"
)

func NewRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meetbot",
		Short:         "Attend scheduled Teams meetings automatically",
		Long:          "meetbot keeps a weekly timetable of Teams meetings, joins each one muted at its start time, leaves at its end time and reports every step to Discord or email.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, a)
		},
	}

	rootCmd.Version = appinfo.Version
	rootCmd.SetVersionTemplate(appinfo.Display() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to config.json (default $MEETBOT_CONFIG or ./config.json)")
	flags.StringVar(&a.envPath, "env-file", ".env", "dotenv file with EMAIL, PASSWORD and DISCORD_WEBHOOK")
	flags.BoolVar(&a.debug, "debug", false, "log debug lines")

	rootCmd.AddCommand(NewInitCmd(a))
	rootCmd.AddCommand(NewAddCmd(a))
	rootCmd.AddCommand(NewListCmd(a))
	rootCmd.AddCommand(NewImportCmd(a))
	rootCmd.AddCommand(NewNextCmd(a))
	rootCmd.AddCommand(NewStartCmd(a))
	rootCmd.AddCommand(NewRunsCmd(a))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// runMenu is the interactive entry point when no subcommand is given.
func runMenu(cmd *cobra.Command, a *app) error {
	fmt.Fprintln(a.out, "1. Modify Timetable\n2. View Timetable\n3. Start Bot")
	op, ok := a.readLine("Enter option: ")
	if !ok {
		return nil
	}
	switch op {
	case "1":
		return runAdd(cmd.Context(), a, "")
	case "2":
		return runList(cmd.Context(), a, "table")
	case "3":
		return runStart(cmd.Context(), a)
	default:
		fmt.Fprintln(a.out, "Invalid option.")
		return nil
	}
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), appinfo.Display())
			return nil
		},
	}
}
