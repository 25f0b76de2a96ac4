package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"captionsync/internal/timeline"
)

type json3Document struct {
	WireMagic string       `json:"wireMagic,omitempty"`
	Events    []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    *int64         `json:"tStartMs,omitempty"`
	DDurationMs *int64         `json:"dDurationMs,omitempty"`
	AAppend     *int           `json:"aAppend,omitempty"`
	Segs        []json3Segment `json:"segs,omitempty"`
}

type json3Segment struct {
	UTF8 string `json:"utf8"`
}

// text joins the event's segments. Events that only carry line breaks
// (auto-generated tracks emit these between rows) come back empty.
func (e json3Event) text() string {
	var b strings.Builder
	for _, seg := range e.Segs {
		b.WriteString(seg.UTF8)
	}
	joined := b.String()
	if strings.TrimSpace(strings.ReplaceAll(joined, `\n`, "")) == "" {
		return ""
	}
	return joined
}

// ParseJSON3 decodes YouTube timedtext json3 into raw events. Events without
// a start time or text are dropped; a missing duration is passed through as
// zero so the timeline extends the cue to the next start.
func ParseJSON3(data []byte) ([]timeline.RawEvent, error) {
	var doc json3Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json3: %w", err)
	}
	events := make([]timeline.RawEvent, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if ev.TStartMs == nil || ev.AAppend != nil {
			continue
		}
		text := ev.text()
		if text == "" {
			continue
		}
		var duration int64
		if ev.DDurationMs != nil {
			duration = *ev.DDurationMs
		}
		events = append(events, timeline.RawEvent{
			StartMs:    *ev.TStartMs,
			DurationMs: duration,
			Text:       text,
		})
	}
	return events, nil
}
