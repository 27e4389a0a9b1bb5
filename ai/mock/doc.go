// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ExtractionAgent,
// ai.Completer and ai.Provider for use in unit tests. The mocks allow tests to
// run without external AI service dependencies and enable controlled,
// deterministic behavior. All mocks are safe for concurrent use.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	agent := mock.NewMockExtractionAgent()
//	agent.ExtractFunc = func(ctx context.Context, req ai.ExtractionRequest) (*core.InsuranceSummary, error) {
//	    return &core.InsuranceSummary{DependentLife: &core.DependentLife{}}, nil
//	}
//
//	count := agent.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockExtractionAgent: Returns a summary with every section null
//   - MockCompleter: Answers "not found"
//   - MockProvider: Aggregates the three
package mock
