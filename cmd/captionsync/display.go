package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"captionsync/internal/engine"
	"captionsync/internal/scheduler"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// consoleDisplay prints each rendered caption with its playback timestamp.
type consoleDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	playback engine.PlaybackClock
	colorize bool
	shows    int
	hides    int
}

func newConsoleDisplay(out io.Writer, playback engine.PlaybackClock) *consoleDisplay {
	return &consoleDisplay{out: out, playback: playback, colorize: shouldColorize(out)}
}

func (d *consoleDisplay) Show(translated, original string) {
	stamp := formatPlayback(d.playback.NowMs())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shows++
	if d.colorize {
		fmt.Fprintf(d.out, "%s%s%s  %s%s%s\n", ansiDim, stamp, ansiReset, ansiGreen, translated, ansiReset)
	} else {
		fmt.Fprintf(d.out, "%s  %s\n", stamp, translated)
	}
	if original == "" {
		return
	}
	indent := fmt.Sprintf("%*s", len(stamp), "")
	if d.colorize {
		fmt.Fprintf(d.out, "%s  %s%s%s\n", indent, ansiDim, original, ansiReset)
	} else {
		fmt.Fprintf(d.out, "%s  %s\n", indent, original)
	}
}

func (d *consoleDisplay) Hide() {
	d.mu.Lock()
	d.hides++
	d.mu.Unlock()
}

func (d *consoleDisplay) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shows, d.hides
}

// consoleNotifier prints translation notices to the error stream.
func consoleNotifier(out io.Writer) scheduler.Notifier {
	colorize := shouldColorize(out)
	var mu sync.Mutex
	return scheduler.NotifierFunc(func(n scheduler.Notice) {
		color := ansiYellow
		if n.Kind == scheduler.NoticePaused {
			color = ansiRed
		}
		mu.Lock()
		defer mu.Unlock()
		if colorize {
			fmt.Fprintf(out, "%s! %s%s\n", color, n.Message(), ansiReset)
			return
		}
		fmt.Fprintf(out, "! %s\n", n.Message())
	})
}

func formatPlayback(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	millis := ms % 1000
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	}
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
