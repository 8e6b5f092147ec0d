// Package gemini implements [inference.Backend] for the Google Gemini
// API. It wraps the google.golang.org/genai SDK, translating between
// the domain types and the Gemini API types. Streaming uses the SDK's
// iter.Seq2 iterator, wrapped into the pull-based [inference.Stream]
// interface. Gemini calls are metered: the fallback layer gates them
// through admission control and records their usage.
package gemini

const (
	defaultModel     = "gemini-2.5-pro"
	defaultMaxTokens = 8192

	// Name identifies this backend in results and traces.
	Name = "gemini"
)
