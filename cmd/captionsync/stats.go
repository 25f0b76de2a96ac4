package main

import (
	"strconv"
	"time"

	"captionsync/internal/engine"
)

func renderReplayStats(status engine.Status, shows, hides int) string {
	s := status.Scheduler
	cooldown := "no"
	if !s.CooldownUntil.IsZero() && s.CooldownUntil.After(time.Now()) {
		cooldown = "until " + s.CooldownUntil.Format("15:04:05")
	}
	return renderFieldTable("Replay", [][2]string{
		{"Session", status.SessionID},
		{"Provider", status.Provider},
		{"Target language", status.TargetLanguage},
		{"Mode", status.Mode + forcedSuffix(status.ForcedMode)},
		{"Translated track", yesNo(status.ExternalTrack)},
		{"Timeline cues", strconv.Itoa(status.TimelineCues)},
		{"Sentence groups", strconv.Itoa(status.Groups)},
		{"Captions shown", strconv.Itoa(shows)},
		{"Overlay hidden", strconv.Itoa(hides)},
		{"Renders", formatCount(status.Render.Renders)},
		{"Stale results dropped", formatCount(status.Render.StaleDropped)},
		{"Render failures", formatCount(status.Render.Failures)},
		{"Cached translations", strconv.Itoa(s.Cached)},
		{"Cache hits", formatCount(s.CacheHits)},
		{"Joined in-flight", formatCount(s.Joined)},
		{"Skipped", formatCount(s.Skipped)},
		{"Transport calls", formatCount(s.TransportCalls)},
		{"Failures", formatCount(s.Failures)},
		{"Short-circuited", formatCount(s.ShortCircuited)},
		{"Cooldown", cooldown},
	})
}

func forcedSuffix(forced bool) string {
	if forced {
		return " (forced)"
	}
	return ""
}

func formatCount(n uint64) string {
	return strconv.FormatUint(n, 10)
}
