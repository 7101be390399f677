package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "sgdn",
	Short: "SGD reminders and peak-day alerts",
	Long: `sgdn runs a local daemon that fires SGD reminders and peak-hour alerts on
the first and last business days of each month, and a CLI to manage them.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(remindersCmd, calendarCmd, peakCmd, holidaysCmd, settingsCmd)
	rootCmd.AddCommand(activeCmd, actCmd, watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
