package testsupport

import "sync"

// DisplayEvent is one recorded Show or Hide.
type DisplayEvent struct {
	Visible    bool
	Translated string
	Original   string
}

// RecordingDisplay records every Show and Hide call.
type RecordingDisplay struct {
	mu     sync.Mutex
	events []DisplayEvent
}

func (d *RecordingDisplay) Show(translated, original string) {
	d.mu.Lock()
	d.events = append(d.events, DisplayEvent{Visible: true, Translated: translated, Original: original})
	d.mu.Unlock()
}

func (d *RecordingDisplay) Hide() {
	d.mu.Lock()
	d.events = append(d.events, DisplayEvent{})
	d.mu.Unlock()
}

// Events returns a copy of all recorded events.
func (d *RecordingDisplay) Events() []DisplayEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayEvent(nil), d.events...)
}

// Last returns the most recent event.
func (d *RecordingDisplay) Last() (DisplayEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) == 0 {
		return DisplayEvent{}, false
	}
	return d.events[len(d.events)-1], true
}

// Shown returns the translated text of every Show, in order.
func (d *RecordingDisplay) Shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, e := range d.events {
		if e.Visible {
			out = append(out, e.Translated)
		}
	}
	return out
}
