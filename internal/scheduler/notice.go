package scheduler

import "time"

// NoticeKind identifies a user-facing translation status change.
type NoticeKind int

const (
	// NoticeFailure is sent on the first failure after a success.
	NoticeFailure NoticeKind = iota + 1
	// NoticePaused is sent when repeated failures open the cooldown.
	NoticePaused
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeFailure:
		return "failure"
	case NoticePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Notice describes a status change for the user.
type Notice struct {
	Kind  NoticeKind
	Err   error
	Until time.Time
}

// Message returns the short text shown to the user.
func (n Notice) Message() string {
	switch n.Kind {
	case NoticeFailure:
		return "Translation failed; keeping the last caption"
	case NoticePaused:
		return "Translation paused, retrying shortly"
	default:
		return ""
	}
}

// Notifier receives notices. Notify must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
