// Package ollama implements [inference.Backend] for a local Ollama
// server. Generation uses the /api/generate endpoint; streaming reads
// the endpoint's newline-delimited JSON through the pull-based
// [inference.Stream] interface. Local generation is not metered.
package ollama

const (
	defaultBaseURL = "http://127.0.0.1:11434"
	defaultModel   = "llama3.1:8b"
	generatePath   = "/api/generate"
	versionPath    = "/api/version"

	// Name identifies this backend in results and traces.
	Name = "ollama"
)

// apiOptions maps generation parameters onto Ollama model options.
type apiOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// apiRequest is the JSON body sent to /api/generate.
type apiRequest struct {
	Model   string      `json:"model"`
	Prompt  string      `json:"prompt"`
	System  string      `json:"system,omitempty"`
	Stream  bool        `json:"stream"`
	Options *apiOptions `json:"options,omitempty"`
}

// apiResponse is one /api/generate response object. In streaming mode
// the same shape arrives once per line, with eval counts only on the
// final done=true object.
type apiResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// apiErrorResponse is the JSON body returned on non-200 responses.
type apiErrorResponse struct {
	Error string `json:"error"`
}
