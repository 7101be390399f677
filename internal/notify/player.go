package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Player plays a sound resource once at a volume in [0,1].
type Player interface {
	Play(ctx context.Context, sound string, volume float64) error
}

// NopPlayer is silent.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string, float64) error { return nil }

// CommandPlayer runs an external audio command built from a template such
// as "paplay --volume={volume_pa} {file}". Placeholders: {file}, {volume}
// (0-1), {percent} (0-100) and {volume_pa} (0-65536).
type CommandPlayer struct {
	template string
	logger   *slog.Logger
}

func NewCommandPlayer(template string) *CommandPlayer {
	return &CommandPlayer{template: template, logger: slog.Default()}
}

func expandCommand(template, sound string, volume float64) []string {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	r := strings.NewReplacer(
		"{file}", sound,
		"{volume}", strconv.FormatFloat(volume, 'f', 2, 64),
		"{percent}", strconv.Itoa(int(volume*100+0.5)),
		"{volume_pa}", strconv.Itoa(int(volume*65536+0.5)),
	)
	fields := strings.Fields(template)
	for i, f := range fields {
		fields[i] = r.Replace(f)
	}
	return fields
}

// Play starts the command and returns without waiting for it to finish.
func (p *CommandPlayer) Play(_ context.Context, sound string, volume float64) error {
	if sound == "" || strings.TrimSpace(p.template) == "" {
		return nil
	}
	argv := expandCommand(p.template, sound, volume)
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Warn("sound command failed", "command", argv[0], "error", err)
		}
	}()
	return nil
}
