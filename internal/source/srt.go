package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"captionsync/internal/timeline"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// ParseSRT decodes SubRip blocks into raw events. Blocks without a valid
// timing line are skipped; an input with no usable block is an error.
func ParseSRT(content string) ([]timeline.RawEvent, error) {
	var events []timeline.RawEvent
	for _, block := range splitBlocks(content) {
		lines := strings.Split(block, "\n")
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
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
	if len(events) == 0 && strings.TrimSpace(content) != "" {
		return nil, fmt.Errorf("no valid subrip cues")
	}
	return events, nil
}

func splitBlocks(content string) []string {
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	var blocks []string
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, strings.Trim(block, "\n"))
		}
	}
	return blocks
}

// parseTimingLine reads "start --> end [settings]".
func parseTimingLine(line string) (int64, int64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts hh:mm:ss,mmm and hh:mm:ss.mmm, and mm:ss.mmm as
// WebVTT allows.
func parseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) == 2 {
		hms = append([]string{"0"}, hms...)
	}
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return int64(hours*3600+minutes*60+seconds)*1000 + int64(millis), nil
}

// cueText joins payload lines with spaces and strips inline markup.
func cueText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(markupTag.ReplaceAllString(line, ""))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
