// Package llm wraps external text-generation backends behind a small
// code-generation contract: prompt in, generated text or classified error out.
package llm

import (
	"context"
)

// CodeGenerator defines the interface for code generation backends.
// Use this interface for dependency injection to enable mocking in tests.
type CodeGenerator interface {
	// GenerateCode sends a prompt (plus a system instruction) to the backend
	// and returns the raw response text. Errors are classified *Error values.
	GenerateCode(ctx context.Context, prompt string, systemInstruction string) (string, error)

	// CheckQuota issues a minimal probe request to verify the backend will
	// accept traffic. Returns a quota-classified error when it will not.
	CheckQuota(ctx context.Context) error

	// Model returns the model this generator targets.
	Model() string

	// WithModel returns a generator targeting a different model on the same
	// backend and credential. Used by the fallback pass; cheap to call.
	WithModel(model string) CodeGenerator
}

// Ensure implementations satisfy CodeGenerator at compile time.
var (
	_ CodeGenerator = (*GeminiClient)(nil)
	_ CodeGenerator = (*OpenAIClient)(nil)
	_ CodeGenerator = (*MockCodeGenerator)(nil)
)
