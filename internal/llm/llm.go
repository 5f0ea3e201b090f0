// Package llm is the generation service used by the enrich, score and draft
// stages. A Generator turns a prompt into text; Guard adds rate limiting,
// retry and circuit breaking around any provider.
package llm

import "context"

// Format is the requested response format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// jsonInstruction is appended to the system prompt in JSON mode.
const jsonInstruction = "\nYou MUST respond with valid JSON only. No markdown, no explanations."

// Request is one generation call.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	Format      Format

	// Stage labels the call in cost logs.
	Stage string
}

// SystemPrompt returns the system prompt with the JSON instruction appended
// when the request asks for JSON.
func (r Request) SystemPrompt() string {
	if r.Format == FormatJSON {
		return r.System + jsonInstruction
	}
	return r.System
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
