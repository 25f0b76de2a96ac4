// Package llm provides a chat-completions transport for OpenAI-compatible
// gateways such as OpenRouter.
//
// # Translation Logic
//
// Each caption is sent as the user message under a system prompt naming the
// target language. The reply is stripped of code fences and quotes; an empty
// reply is a malformed response.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
// A missing api_key fails every call with missing credentials.
//
// # Retry Behaviour
//
// The client retries HTTP 408/5xx errors, network timeouts, and empty replies
// with exponential backoff (base 1s, max 10s, 2 attempts by default). HTTP 429
// is never retried here: it surfaces as a rate limit error carrying the
// Retry-After hint so the paced queue in package transport can schedule it.
// Context cancellation aborts retries immediately.
package llm
