package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
)

// MockExtractionAgent is a test double for ai.ExtractionAgent.
type MockExtractionAgent struct {
	// ExtractFunc is called by Extract if set.
	// If nil, Extract returns a summary with every section null.
	ExtractFunc func(ctx context.Context, req ai.ExtractionRequest) (*core.InsuranceSummary, error)

	mu        sync.Mutex
	callCount int
	requests  []ai.ExtractionRequest
}

// NewMockExtractionAgent creates a mock agent with default behavior.
func NewMockExtractionAgent() *MockExtractionAgent {
	return &MockExtractionAgent{}
}

// Extract records the request and delegates to ExtractFunc.
func (m *MockExtractionAgent) Extract(ctx context.Context, req ai.ExtractionRequest) (*core.InsuranceSummary, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	fn := m.ExtractFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &core.InsuranceSummary{}, nil
}

// CallCount returns the number of times Extract was called.
func (m *MockExtractionAgent) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns a copy of every request received so far.
func (m *MockExtractionAgent) Requests() []ai.ExtractionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.ExtractionRequest(nil), m.requests...)
}

// Reset clears the call count, recorded requests and custom function.
func (m *MockExtractionAgent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.ExtractFunc = nil
}

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete answers "not found".
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewMockCompleter creates a mock completer with default behavior.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the prompt and delegates to CompleteFunc.
func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, prompt)
	}
	return "not found", nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears the call count, recorded prompts and custom function.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.CompleteFunc = nil
}
