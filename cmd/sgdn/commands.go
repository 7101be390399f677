package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sgd-notifier/sgdn/internal/api"
	"github.com/sgd-notifier/sgdn/internal/calendar"
	"github.com/sgd-notifier/sgdn/internal/config"
	"github.com/sgd-notifier/sgdn/internal/holiday"
	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/settings"
)

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sgd_")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- reminders ---

var remindersCmd = &cobra.Command{
	Use:     "reminders",
	Aliases: []string{"r"},
	Short:   "Manage SGD reminders",
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/reminders")
		if err != nil {
			return err
		}
		var list []reminder.Reminder
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		if asJSON {
			return printJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No reminders.")
			return nil
		}
		for _, r := range list {
			fmt.Println(formatReminder(r))
		}
		return nil
	},
}

// formatReminder renders one reminder as a single list line.
func formatReminder(r reminder.Reminder) string {
	prio := string(r.Priority)
	switch r.Priority {
	case reminder.PriorityUrgent:
		prio = colorize(styleRed, prio)
	case reminder.PriorityImportant:
		prio = colorize(styleYellow, prio)
	}
	line := fmt.Sprintf("%s  %s %s  %-10s %-9s  %s",
		colorize(styleCyan, shortID(r.ID)),
		r.StartDate, r.Time, r.Frequency, prio, r.Message)
	if r.Completed {
		line += colorize(styleMuted, " (completed)")
	}
	return line
}

var remindersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a reminder",
	Long: `Create a reminder.

Examples:
  sgdn reminders add --time 09:00 --frequency daily
  sgdn reminders add --message "Export SGD report" --time 17:30 --frequency monthly --priority urgent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, _ := cmd.Flags().GetString("message")
		start, _ := cmd.Flags().GetString("start")
		at, _ := cmd.Flags().GetString("time")
		freq, _ := cmd.Flags().GetString("frequency")
		prio, _ := cmd.Flags().GetString("priority")

		if at == "" {
			return fmt.Errorf("--time is required")
		}
		if start == "" {
			start = time.Now().Format(reminder.DateLayout)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/reminders", api.CreateReminderRequest{
			Message:   msg,
			StartDate: start,
			Time:      at,
			Frequency: reminder.Frequency(freq),
			Priority:  reminder.Priority(prio),
		})
		if err != nil {
			return err
		}
		var saved reminder.Reminder
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Created reminder %s (%s at %s)", shortID(saved.ID), saved.Frequency, saved.Time)
		return nil
	},
}

var remindersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var u reminder.Update
		flags := cmd.Flags()
		if flags.Changed("message") {
			v, _ := flags.GetString("message")
			u.Message = &v
		}
		if flags.Changed("start") {
			v, _ := flags.GetString("start")
			u.StartDate = &v
		}
		if flags.Changed("time") {
			v, _ := flags.GetString("time")
			u.Time = &v
		}
		if flags.Changed("frequency") {
			v, _ := flags.GetString("frequency")
			f := reminder.Frequency(v)
			u.Frequency = &f
		}
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			p := reminder.Priority(v)
			u.Priority = &p
		}
		if flags.Changed("completed") {
			v, _ := flags.GetBool("completed")
			u.Completed = &v
		}
		if u == (reminder.Update{}) {
			return fmt.Errorf("nothing to update")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/reminders/"+url.PathEscape(args[0]), u)
		if err != nil {
			return err
		}
		var saved reminder.Reminder
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Updated reminder %s", shortID(saved.ID))
		return nil
	},
}

var remindersCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a reminder completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/reminders/"+url.PathEscape(args[0])+"/complete", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Completed reminder %s", args[0])
		return nil
	},
}

var remindersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/reminders/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted reminder %s", args[0])
		return nil
	},
}

func addReminderFlags(cmd *cobra.Command) {
	cmd.Flags().String("message", "", "reminder text (default \""+reminder.DefaultMessage+"\")")
	cmd.Flags().String("start", "", "start date YYYY-MM-DD (default today)")
	cmd.Flags().String("time", "", "time of day HH:MM")
	cmd.Flags().String("frequency", string(reminder.OnceToday), "once_today, daily, weekly, biweekly or monthly")
	cmd.Flags().String("priority", string(reminder.PriorityNormal), "normal, important or urgent")
}

func init() {
	remindersListCmd.Flags().Bool("json", false, "print raw JSON")
	addReminderFlags(remindersAddCmd)
	addReminderFlags(remindersUpdateCmd)
	remindersUpdateCmd.Flags().Bool("completed", false, "set the completed flag")

	remindersCmd.AddCommand(remindersListCmd, remindersAddCmd, remindersUpdateCmd, remindersCompleteCmd, remindersDeleteCmd)
}

// --- calendar ---

// parseYearMonth reads optional "<year> <month>" arguments, defaulting to
// the current month.
func parseYearMonth(args []string, now time.Time) (int, time.Month, error) {
	year, month := now.Year(), now.Month()
	if len(args) == 0 {
		return year, month, nil
	}
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected <year> <month>")
	}
	y, err := strconv.Atoi(args[0])
	if err != nil || y <= 0 {
		return 0, 0, fmt.Errorf("invalid year %q", args[0])
	}
	m, err := strconv.Atoi(args[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid month %q (1-12)", args[1])
	}
	return y, time.Month(m), nil
}

var calendarCmd = &cobra.Command{
	Use:   "calendar [year month]",
	Short: "Show reminders and peak days for a month",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parseYearMonth(args, time.Now())
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var events calendar.Month
		if err := client.message(cmd.Context(), api.Message{
			Type:  api.MsgGetEventsForMonth,
			Year:  year,
			Month: int(month),
		}, &events); err != nil {
			return err
		}

		if asJSON {
			return printJSON(events)
		}
		fmt.Println(renderMonth(year, month, events))
		for _, day := range events.Days() {
			for _, ev := range events[day] {
				fmt.Println(formatEvent(ev))
			}
		}
		return nil
	},
}

func init() {
	calendarCmd.Flags().Bool("json", false, "print raw JSON")
}

// renderMonth draws a Sunday-first month grid. Peak days are marked with *
// and days that only carry reminders with +.
func renderMonth(year int, month time.Month, events calendar.Month) string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	var b strings.Builder
	b.WriteString(colorize(styleBold, fmt.Sprintf("%s %d", month, year)))
	b.WriteString("\n Su  Mo  Tu  We  Th  Fr  Sa\n")
	col := int(first.Weekday())
	b.WriteString(strings.Repeat("    ", col))
	for d := 1; d <= days; d++ {
		cell := fmt.Sprintf("%3d", d)
		mark := " "
		for _, ev := range events[d] {
			if ev.Kind == calendar.KindPeak {
				mark = "*"
				break
			}
			mark = "+"
		}
		switch mark {
		case "*":
			cell = colorize(styleRed, cell+mark)
		case "+":
			cell = colorize(styleCyan, cell+mark)
		default:
			cell += mark
		}
		b.WriteString(cell)
		col++
		if col == 7 && d != days {
			b.WriteString("\n")
			col = 0
		}
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func formatEvent(ev calendar.ScheduledEvent) string {
	line := fmt.Sprintf("%2d  %s  %s", ev.DayOfMonth, ev.Time, ev.Message)
	switch {
	case ev.Kind == calendar.KindPeak:
		return colorize(styleRed, line)
	case ev.Completed:
		return colorize(styleMuted, line+" (completed)")
	}
	return line
}

// --- peak ---

var peakCmd = &cobra.Command{
	Use:   "peak [year month]",
	Short: "List the peak days of a month",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := parseYearMonth(args, time.Now())
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/peak-days?year=%d&month=%d", year, int(month)))
		if err != nil {
			return err
		}
		var res api.PeakDaysResponse
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if len(res.Days) == 0 {
			fmt.Println("No peak days.")
			return nil
		}
		for _, d := range res.Days {
			fmt.Println(d)
		}
		return nil
	},
}

// --- holidays ---

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "Inspect and refresh the national holiday cache",
}

var holidaysShowCmd = &cobra.Command{
	Use:   "show [year]",
	Short: "Show cached holidays for a year",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/holidays"
		if len(args) == 1 {
			if _, err := strconv.Atoi(args[0]); err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			path += "?year=" + args[0]
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var res api.HolidaysResponse
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if !res.Cached {
			printWarning("No holidays cached for %d", res.Year)
			return nil
		}
		for _, d := range res.Dates {
			fmt.Println(d)
		}
		return nil
	},
}

var holidaysRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch holidays for the configured years",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Refreshing holidays...")
		resp, err := client.post(cmd.Context(), "/holidays/refresh", nil)
		if err != nil {
			return err
		}
		var res holiday.RefreshResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		if len(res.Failed) > 0 {
			printWarning("Failed years: %v", res.Failed)
		}
		printSuccess("Fetched %d year(s)", len(res.Fetched))
		return nil
	},
}

func init() {
	holidaysCmd.AddCommand(holidaysShowCmd, holidaysRefreshCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change sound settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var u settings.Update
		flags := cmd.Flags()
		if flags.Changed("sound") {
			v, _ := flags.GetString("sound")
			u.Sound = &v
		}
		if flags.Changed("volume") {
			v, _ := flags.GetFloat64("volume")
			u.Volume = &v
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var s settings.Settings
		if u == (settings.Update{}) {
			resp, err := client.get(cmd.Context(), "/settings")
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &s); err != nil {
				return err
			}
		} else {
			resp, err := client.patch(cmd.Context(), "/settings", u)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &s); err != nil {
				return err
			}
			printSuccess("Settings updated")
		}
		printStatus("Sound", "%s", s.Sound)
		printStatus("Volume", "%.2f", s.Volume)
		return nil
	},
}

func init() {
	settingsCmd.Flags().String("sound", "", "sound file played when an alert fires")
	settingsCmd.Flags().Float64("volume", 1, "playback volume between 0 and 1")
}

// --- notifications ---

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		n, err := client.ActiveNotification(cmd.Context())
		if err != nil {
			return err
		}
		if n == nil {
			fmt.Println("No active notification.")
			return nil
		}
		fmt.Println(renderOverlay(*n))
		return nil
	},
}

var actCmd = &cobra.Command{
	Use:   "act <id> <button>",
	Short: "Press a button of the active notification (-1 dismisses)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		button, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid button index %q", args[1])
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := client.action(cmd.Context(), args[0], button)
		if err != nil {
			return err
		}
		if res.Status == "ignored" {
			printWarning("Notification %s is not active", args[0])
			return nil
		}
		printSuccess("Notification %s: %s", shortID(args[0]), res.Action)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, ki := range config.ShowAll(cfg) {
			fmt.Printf("%-24s %-32s %s\n", ki.Key, colorize(styleMuted, ki.EnvVar), ki.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s = %s", args[0], args[1])
		printStep("Restart the daemon to apply")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.Path())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
}
