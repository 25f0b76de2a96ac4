package source

import (
	"context"

	"captionsync/internal/timeline"
)

// Static returns the same events on every Fetch.
type Static struct {
	Events []timeline.RawEvent
}

// NewStatic copies events into a Static source.
func NewStatic(events []timeline.RawEvent) *Static {
	return &Static{Events: append([]timeline.RawEvent(nil), events...)}
}

// Fetch returns a copy of the configured events.
func (s *Static) Fetch(ctx context.Context) ([]timeline.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]timeline.RawEvent(nil), s.Events...), nil
}
