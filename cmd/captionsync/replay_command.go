package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captionsync/internal/api"
	"captionsync/internal/clock"
	"captionsync/internal/config"
	"captionsync/internal/engine"
	"captionsync/internal/language"
	"captionsync/internal/metrics"
	"captionsync/internal/notifications"
	"captionsync/internal/source"
	"captionsync/internal/timeline"
)

type replayOptions struct {
	speed           float64
	start           time.Duration
	provider        string
	target          string
	translatedTrack string
	metricsAddr     string
	live            bool
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay <caption-file>",
		Short: "Replay a caption file through the translation engine",
		Long: "Replay loads a json3, SRT or WebVTT caption file, simulates playback at the\n" +
			"requested speed, and prints each caption as the renderer would show it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			runCfg, err := applyReplayOverrides(cfg, opts)
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), runCfg, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
		},
	}

	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().DurationVar(&opts.start, "start", 0, "Playback position to start from")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Override translation.provider (openai, llm, echo)")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Override translation.target_language")
	cmd.Flags().StringVar(&opts.translatedTrack, "translated-track", "", "Caption file with an existing translation to align instead of calling the provider")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /status on this address")
	cmd.Flags().BoolVar(&opts.live, "live", false, "Feed word-by-word caption snapshots, as live streams do")
	return cmd
}

// applyReplayOverrides returns a copy of cfg with command-line overrides
// applied and re-validated.
func applyReplayOverrides(cfg *config.Config, opts replayOptions) (*config.Config, error) {
	if opts.speed <= 0 {
		return nil, errors.New("--speed must be positive")
	}
	if opts.start < 0 {
		return nil, errors.New("--start must not be negative")
	}
	clone := *cfg
	if provider := strings.ToLower(strings.TrimSpace(opts.provider)); provider != "" {
		clone.Translation.Provider = provider
	}
	if target := strings.TrimSpace(opts.target); target != "" {
		tag, err := language.Normalize(target)
		if err != nil {
			return nil, fmt.Errorf("--target: %w", err)
		}
		clone.Translation.TargetLanguage = tag
	}
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &clone, nil
}

func runReplay(ctx context.Context, cfg *config.Config, path string, opts replayOptions, out, errOut io.Writer, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	src := source.NewFile(path)
	events, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	track := timeline.New(engine.TimelineOptions(cfg))
	if err := track.Replace(events); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	cues := track.Cues()
	endMs := cues[len(cues)-1].EndMs

	var m *metrics.Metrics
	metricsAddr := strings.TrimSpace(opts.metricsAddr)
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Bind
	}
	if metricsAddr != "" {
		m = metrics.New()
	}

	ntfy := notifications.NewService(cfg, logger)
	defer ntfy.Wait()

	playback := newReplayClock(clock.Real{}, opts.speed, opts.start.Milliseconds())
	display := newConsoleDisplay(out, playback)
	eng, err := engine.New(cfg, engine.Deps{
		Source:   src,
		Playback: playback,
		Display:  display,
		Logger:   logger,
		Metrics:  m,
		Notifier: notifications.Tee(consoleNotifier(errOut), ntfy),
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.LoadTimeline(events); err != nil {
		return err
	}
	if opts.translatedTrack != "" {
		translated, err := source.NewFile(opts.translatedTrack).Fetch(ctx)
		if err != nil {
			return err
		}
		if err := eng.SetTranslatedTrack(translated); err != nil {
			return err
		}
	}

	playback.Begin()
	if metricsAddr != "" {
		srv, err := api.NewServer(metricsAddr, eng, m, logger)
		if err != nil {
			return err
		}
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop()
		fmt.Fprintf(errOut, "Serving /metrics and /status on http://%s\n", srv.Addr())
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	feedSnapshots(ctx, eng, track, playback, endMs, opts.live, time.Duration(cfg.Render.TickIntervalMs)*time.Millisecond)
	eng.Stop()

	shows, hides := display.counts()
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderReplayStats(eng.Status(), shows, hides))
	return ctx.Err()
}

// feedSnapshots plays the role of the page: on every tick it reports the
// caption text visible at the playback position until the track ends.
func feedSnapshots(ctx context.Context, eng *engine.Engine, track *timeline.Timeline, playback *replayClock, endMs int64, live bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		nowMs := playback.NowMs()
		if nowMs > endMs {
			return
		}
		text := ""
		if idx, ok := track.FindActiveIndex(nowMs); ok {
			cue, _ := track.Cue(idx)
			text = cue.Text
			if live {
				text = partialCaption(cue, nowMs)
			}
		}
		eng.OnSnapshot(text, playback.WallMs())
	}
}

// partialCaption returns the words of cue revealed by nowMs, assuming they
// arrive evenly across the cue.
func partialCaption(cue timeline.Cue, nowMs int64) string {
	words := strings.Fields(cue.Text)
	if len(words) == 0 || cue.DurationMs() <= 0 {
		return cue.Text
	}
	shown := int((nowMs-cue.StartMs)*int64(len(words))/cue.DurationMs()) + 1
	if shown > len(words) {
		shown = len(words)
	}
	return strings.Join(words[:shown], " ")
}

// replayClock maps wall time onto a media position at a fixed speed.
type replayClock struct {
	clock   clock.Clock
	speed   float64
	startMs int64
	began   time.Time
}

func newReplayClock(c clock.Clock, speed float64, startMs int64) *replayClock {
	return &replayClock{clock: c, speed: speed, startMs: startMs, began: c.Now()}
}

// Begin restarts the simulated playback from the start position.
func (c *replayClock) Begin() {
	c.began = c.clock.Now()
}

func (c *replayClock) NowMs() int64 {
	elapsed := c.clock.Now().Sub(c.began)
	return c.startMs + int64(float64(elapsed.Milliseconds())*c.speed)
}

// WallMs is the elapsed real time, the scale the mode detector expects.
func (c *replayClock) WallMs() int64 {
	return c.clock.Now().Sub(c.began).Milliseconds()
}
