package transport

import (
	"context"
	"strings"

	"captionsync/internal/services"
)

// Echo is an offline transport that tags each text with the target language.
// It backs replays and tests that must not reach a network provider.
type Echo struct {
	// Prefix overrides the default "[<lang>] " marker.
	Prefix string
}

func (Echo) Name() string { return "echo" }

func (e Echo) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrTransport, "echo", "translate", "context done", err)
	}
	prefix := e.Prefix
	if prefix == "" {
		prefix = "[" + targetLang + "] "
	}
	return prefix + strings.TrimSpace(text), nil
}
