// Package transport defines the boundary to translation providers.
//
// A Transport turns one source text into the target language. Concrete
// providers live in subpackages (llm, openai) alongside the offline Echo
// transport in this package. Paced wraps any Transport with the per-provider
// outbound queue: consecutive calls are serialized with a minimum spacing and
// rate-limited calls are retried with exponential delays. Every other error is
// returned to the caller unchanged.
package transport

import "context"

// Transport translates text into targetLang. Implementations classify their
// failures with the services error markers.
type Transport interface {
	Name() string
	Translate(ctx context.Context, text, targetLang string) (string, error)
}
