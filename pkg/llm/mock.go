package llm

import (
	"context"
)

// MockCallCounts tracks invocations across all WithModel copies of a mock.
type MockCallCounts struct {
	GenerateCode int
	CheckQuota   int
}

// MockCodeGenerator is a configurable mock for testing generation logic.
// Set the function fields to control behavior in tests. The function fields
// receive the model name so fallback behavior can differ per model.
type MockCodeGenerator struct {
	// GenerateCodeFunc is called when GenerateCode is invoked.
	// If nil, returns "<!DOCTYPE html><html></html>" and nil error.
	GenerateCodeFunc func(ctx context.Context, model, prompt, systemInstruction string) (string, error)

	// CheckQuotaFunc is called when CheckQuota is invoked.
	// If nil, returns nil.
	CheckQuotaFunc func(ctx context.Context, model string) error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Calls tracks invocation counts, shared across WithModel copies.
	Calls *MockCallCounts
}

// NewMockCodeGenerator creates a new mock with sensible defaults.
func NewMockCodeGenerator() *MockCodeGenerator {
	return &MockCodeGenerator{
		ModelName: "mock-model",
		Calls:     &MockCallCounts{},
	}
}

// GenerateCode implements CodeGenerator.
func (m *MockCodeGenerator) GenerateCode(ctx context.Context, prompt string, systemInstruction string) (string, error) {
	m.Calls.GenerateCode++
	if m.GenerateCodeFunc != nil {
		return m.GenerateCodeFunc(ctx, m.ModelName, prompt, systemInstruction)
	}
	return "<!DOCTYPE html><html></html>", nil
}

// CheckQuota implements CodeGenerator.
func (m *MockCodeGenerator) CheckQuota(ctx context.Context) error {
	m.Calls.CheckQuota++
	if m.CheckQuotaFunc != nil {
		return m.CheckQuotaFunc(ctx, m.ModelName)
	}
	return nil
}

// Model implements CodeGenerator.
func (m *MockCodeGenerator) Model() string {
	return m.ModelName
}

// WithModel implements CodeGenerator; the copy shares call counts and
// behavior functions with the original.
func (m *MockCodeGenerator) WithModel(model string) CodeGenerator {
	return &MockCodeGenerator{
		GenerateCodeFunc: m.GenerateCodeFunc,
		CheckQuotaFunc:   m.CheckQuotaFunc,
		ModelName:        model,
		Calls:            m.Calls,
	}
}

// MockGeneratorFactory returns a fixed generator regardless of model.
type MockGeneratorFactory struct {
	Generator *MockCodeGenerator
}

// Create implements GeneratorFactory.
func (f *MockGeneratorFactory) Create(model string) (CodeGenerator, error) {
	return f.Generator.WithModel(model), nil
}

var _ GeneratorFactory = (*MockGeneratorFactory)(nil)
