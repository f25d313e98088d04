package testutil

import (
	"context"
	"encoding/json"
	"sync"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/clients/openrouter"
)

// MockLLMClient is a mock implementation of classifier.LLMClient for testing
type MockLLMClient struct {
	ClassifyNameFunc  func(ctx context.Context, name string, model string) (*classifier.LLMResult, error)
	ClassifyNamesFunc func(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error)
	Model             string

	mu             sync.Mutex
	CallCount      int
	BatchCallCount int
	LastName       string
	LastNames      []string
	LastModel      string
}

func (m *MockLLMClient) ClassifyName(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastName = name
	m.LastModel = model
	m.mu.Unlock()

	if m.ClassifyNameFunc != nil {
		return m.ClassifyNameFunc(ctx, name, model)
	}

	// Default: confidently classify everything as Others
	return &classifier.LLMResult{
		Name:       name,
		Ethnicity:  "Others",
		Confidence: 0.9,
		Reasoning:  "mock default",
	}, nil
}

func (m *MockLLMClient) ClassifyNames(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
	m.mu.Lock()
	m.BatchCallCount++
	m.LastNames = append([]string(nil), names...)
	m.LastModel = model
	m.mu.Unlock()

	if m.ClassifyNamesFunc != nil {
		return m.ClassifyNamesFunc(ctx, names, model)
	}

	// Default: one Others item per requested name
	items := make([]classifier.LLMResult, 0, len(names))
	for _, name := range names {
		items = append(items, classifier.LLMResult{
			Name:       name,
			Ethnicity:  "Others",
			Confidence: 0.9,
			Reasoning:  "mock default",
		})
	}
	return items, nil
}

func (m *MockLLMClient) ModelName() string {
	if m.Model != "" {
		return m.Model
	}
	return "mock/model"
}

// Calls reports how many single and batch calls the mock has seen
func (m *MockLLMClient) Calls() (single int, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount, m.BatchCallCount
}

// MockChatClient is a mock implementation of openrouter.LanguageModelClient for testing
type MockChatClient struct {
	ChatCompletionFunc func(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error)

	mu          sync.Mutex
	CallCount   int
	LastRequest openrouter.ChatCompletionRequest
}

func (m *MockChatClient) ChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	m.mu.Unlock()

	if m.ChatCompletionFunc != nil {
		return m.ChatCompletionFunc(ctx, req)
	}

	// Default: echo back an empty JSON object payload
	return ChatResponse(`{}`), nil
}

// ChatResponse builds a minimal chat completion response whose first
// choice carries the given content
func ChatResponse(content string) *openrouter.ChatCompletionResponse {
	return &openrouter.ChatCompletionResponse{
		ID:     "mock-completion",
		Object: "chat.completion",
		Model:  "mock/model",
		Choices: []openrouter.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openrouter.ChatMessage{Role: openrouter.MessageRoleAssistant, Content: &content},
				FinishReason: "stop",
			},
		},
	}
}

// ChatJSONResponse marshals v and wraps it as a chat completion response
func ChatJSONResponse(v any) *openrouter.ChatCompletionResponse {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return ChatResponse(string(payload))
}
