package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sgd-notifier/sgdn/internal/config"
	"github.com/sgd-notifier/sgdn/internal/notify"
	"github.com/sgd-notifier/sgdn/internal/tabsync"
)

var overlayBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#FF6B6B")).
	Padding(0, 1)

// renderOverlay draws a notification with its buttons numbered by the
// index the daemon expects.
func renderOverlay(n notify.Notification) string {
	var b strings.Builder
	b.WriteString(colorize(styleBold, n.Title))
	if n.Priority != "" {
		b.WriteString(colorize(styleMuted, " ["+string(n.Priority)+"]"))
	}
	b.WriteString("\n")
	b.WriteString(n.Message)
	b.WriteString("\n\n")
	for i, label := range n.Buttons {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "[%d] %s", i, label)
	}
	b.WriteString("  [d] Dismiss")
	b.WriteString("\n")
	b.WriteString(colorize(styleMuted, "id "+n.ID))

	if noColor {
		return b.String()
	}
	return overlayBox.Render(b.String())
}

// terminalView renders the overlay of the watch command.
type terminalView struct {
	out io.Writer
}

func (v terminalView) Build(n notify.Notification) {
	fmt.Fprintln(v.out, renderOverlay(n))
}

func (v terminalView) Remove() {
	fmt.Fprintln(v.out, colorize(styleMuted, "(notification closed)"))
}

func (v terminalView) RemindersUpdated() {
	fmt.Fprintln(v.out, colorize(styleMuted, "(reminders updated)"))
}

// parseInput maps one line typed in the watch terminal to a button index.
// ok is false for a blank line, which asks for an immediate re-sync.
func parseInput(line string) (button int, ok bool, err error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return 0, false, nil
	case "d", "D":
		return notify.ButtonNone, true, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < notify.ButtonNone {
		return 0, false, fmt.Errorf("unknown input %q: type a button number, d to dismiss or q to quit", line)
	}
	return n, true, nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the active notification in this terminal",
	Long: `Follow the active notification in this terminal.

The overlay updates on pushes from the daemon and is re-checked on a poll.
Type a button number and Enter to answer it, d to dismiss, an empty line to
re-sync at once, or q to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		poll, _ := cmd.Flags().GetDuration("poll")
		if !cmd.Flags().Changed("poll") {
			if cfg, err := config.Load(); err == nil {
				poll = cfg.Sync.PollInterval
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pushes, err := tabsync.Subscribe(ctx, client.baseURL, client.token)
		if err != nil {
			printWarning("push stream unavailable, polling every %s: %v", poll, err)
		}

		agent := tabsync.NewAgent(client, terminalView{out: os.Stdout}, poll)
		visible := make(chan struct{}, 1)

		go func() {
			defer cancel()
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if strings.EqualFold(strings.TrimSpace(line), "q") {
					return
				}
				button, ok, err := parseInput(line)
				if err != nil {
					printError("%v", err)
					continue
				}
				if !ok {
					select {
					case visible <- struct{}{}:
					default:
					}
					continue
				}
				if err := agent.Click(ctx, button); err != nil {
					if errors.Is(err, tabsync.ErrNoOverlay) {
						printWarning("No notification shown")
						continue
					}
					printError("%v", err)
				}
			}
		}()

		printStep("Watching notifications (q to quit)")
		agent.Run(ctx, pushes, visible)
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("poll", tabsync.DefaultPollInterval, "how often to re-check the active notification")
}
