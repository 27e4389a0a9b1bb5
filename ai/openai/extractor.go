// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docflow/ai"
	"github.com/poiesic/docflow/core"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxParseAttempts = 3

// Agent implements ai.ExtractionAgent using an OpenAI-compatible chat API
// in JSON mode. Calls to the model go through a circuit breaker.
type Agent struct {
	client  llms.Model
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// newAgent is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAgent(config *ai.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, err
	}

	return newAgentWith(client, config), nil
}

func newAgentWith(client llms.Model, config *ai.Config) *Agent {
	logger := slog.Default().With("component", "openai-agent")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "extraction-agent",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.BreakerFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Agent{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// NewExtractionAgent creates a new extraction agent using the provided configuration.
//
// Returns ai.ExtractionAgent interface to enforce abstraction.
func NewExtractionAgent(config *ai.Config) (ai.ExtractionAgent, error) {
	return newAgent(config)
}

// generate sends content to the model through the breaker.
func (a *Agent) generate(ctx context.Context, content []llms.MessageContent) (*llms.ContentResponse, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
		}
		return nil, err
	}
	return result.(*llms.ContentResponse), nil
}

// Extract asks the model for an insurance summary of the request's chunks.
// Replies that are not valid JSON for the schema are retried a few times.
func (a *Agent) Extract(ctx context.Context, req ai.ExtractionRequest) (*core.InsuranceSummary, error) {
	if len(req.Chunks) == 0 {
		a.logger.Debug("no chunks to extract from", "doc_id", req.DocID)
		return &core.InsuranceSummary{}, nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildExtractionPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildDocumentMessage(req))},
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := a.generate(ctx, content)
		if err != nil {
			a.logger.Error("failed to generate content", "doc_id", req.DocID, "attempt", attempt+1, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			return nil, ai.ErrEmptyResponse
		}

		responseText := repairJSON(response.Choices[0].Content)
		summary, err := core.DecodeInsuranceSummary([]byte(responseText))
		if err != nil {
			lastErr = err
			a.logger.Warn("error parsing extraction response",
				"doc_id", req.DocID,
				"attempt", attempt+1,
				"err", err)
			continue
		}

		a.logger.Debug("extraction finished",
			"doc_id", req.DocID,
			"missing", len(summary.MissingFields()))
		return summary, nil
	}

	a.logger.Error("failed to parse extraction response after retries", "doc_id", req.DocID, "err", lastErr)
	return nil, fmt.Errorf("%w: %w", ai.ErrMalformedResponse, lastErr)
}
