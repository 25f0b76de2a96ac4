package source

import (
	"fmt"
	"strings"

	"captionsync/internal/timeline"
)

// ParseVTT decodes WebVTT cues into raw events. The header, NOTE, STYLE and
// REGION blocks are ignored, as are cue settings after the end timestamp.
func ParseVTT(content string) ([]timeline.RawEvent, error) {
	blocks := splitBlocks(content)
	if len(blocks) == 0 || !strings.HasPrefix(blocks[0], "WEBVTT") {
		return nil, fmt.Errorf("missing WEBVTT header")
	}
	var events []timeline.RawEvent
	for _, block := range blocks[1:] {
		lines := strings.Split(block, "\n")
		switch firstWord(lines[0]) {
		case "NOTE", "STYLE", "REGION":
			continue
		}
		timing := 0
		if !strings.Contains(lines[0], "-->") {
			timing = 1
		}
		if timing >= len(lines) || !strings.Contains(lines[timing], "-->") {
			continue
		}
		start, end, err := parseTimingLine(lines[timing])
		if err != nil {
			continue
		}
		text := cueText(lines[timing+1:])
		if text == "" {
			continue
		}
		events = append(events, timeline.RawEvent{StartMs: start, DurationMs: end - start, Text: text})
	}
	return events, nil
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
