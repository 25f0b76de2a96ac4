package testsupport

import (
	"context"
	"sync"
)

// Step is one scripted transport reply.
type Step struct {
	Result string
	Err    error
}

// ScriptedTransport replays scripted replies per source text. Texts without a
// script translate to "<lang>:<text>".
type ScriptedTransport struct {
	ProviderName string
	// Gate, when set, blocks every call until a value is received or the
	// call's context is done.
	Gate chan struct{}
	// Started receives each text as its call begins, when buffered space allows.
	Started chan string

	mu      sync.Mutex
	scripts map[string][]Step
	calls   []string
}

// NewScriptedTransport returns an empty script.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		ProviderName: "scripted",
		scripts:      make(map[string][]Step),
	}
}

// Script queues replies for text, consumed one per call.
func (s *ScriptedTransport) Script(text string, steps ...Step) {
	s.mu.Lock()
	s.scripts[text] = append(s.scripts[text], steps...)
	s.mu.Unlock()
}

func (s *ScriptedTransport) Name() string { return s.ProviderName }

func (s *ScriptedTransport) Translate(ctx context.Context, text, targetLang string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	if s.Started != nil {
		select {
		case s.Started <- text:
		default:
		}
	}
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if steps := s.scripts[text]; len(steps) > 0 {
		s.scripts[text] = steps[1:]
		return steps[0].Result, steps[0].Err
	}
	return targetLang + ":" + text, nil
}

// Calls returns every text passed to Translate, in call order.
func (s *ScriptedTransport) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount reports the total number of calls.
func (s *ScriptedTransport) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsFor reports how many calls carried text.
func (s *ScriptedTransport) CallsFor(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == text {
			n++
		}
	}
	return n
}
