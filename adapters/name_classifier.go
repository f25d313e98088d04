package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/clients/openrouter"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/llmjson"
)

// DefaultModel is the model used when none is configured
const DefaultModel = "openai/gpt-4.1-mini"

// NameClassifier implements classifier.LLMClient over the OpenRouter
// chat API. Structural failures (transport, bad statuses, unparseable
// payloads) surface as *classifier.ClientError; field-level problems in
// otherwise well-formed payloads are left for the reconciler to degrade
// per item.
type NameClassifier struct {
	client       openrouter.LanguageModelClient
	model        string
	labels       []string
	systemPrompt string
}

// NewNameClassifier creates a NameClassifier. A nil apiKey falls back
// to the OPENROUTER_API_KEY environment variable; the optional
// HTTP_REFERER and SITE_NAME variables populate OpenRouter's
// attribution headers. Empty model and labels use the defaults.
func NewNameClassifier(apiKey *string, model string, labels []string) (*NameClassifier, error) {
	key, err := loadEnvVar(apiKey, "OPENROUTER_API_KEY")
	if err != nil {
		return nil, err
	}

	client := openrouter.NewClient(*key)
	client.Referer = os.Getenv("HTTP_REFERER")
	client.Title = os.Getenv("SITE_NAME")

	return newNameClassifier(client, model, labels), nil
}

// NewNameClassifierWithClient creates a NameClassifier over an existing
// language model client
func NewNameClassifierWithClient(client openrouter.LanguageModelClient, model string, labels []string) *NameClassifier {
	return newNameClassifier(client, model, labels)
}

func newNameClassifier(client openrouter.LanguageModelClient, model string, labels []string) *NameClassifier {
	if model == "" {
		model = DefaultModel
	}
	if len(labels) == 0 {
		labels = classifier.DefaultRuleSet().Labels
	}

	return &NameClassifier{
		client:       client,
		model:        model,
		labels:       labels,
		systemPrompt: buildSystemPrompt(labels),
	}
}

func buildSystemPrompt(labels []string) string {
	return fmt.Sprintf(`You are an expert at inferring the likely ethnicity of a person from their full name.

Classify each name into exactly one of these labels: %s.
Consider patronymic markers, honorific prefixes, surname conventions and given-name patterns. Use %q when the name carries too little signal to decide.

For a single name, respond with one JSON object of the form
{"name": "<the name>", "ethnicity": "<label>", "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}.
For a list of names, respond with a JSON array of such objects, one per input name, echoing each input name exactly.
Respond with JSON only, no prose and no markdown fences.`,
		strings.Join(labels, ", "), classifier.LabelUncertain)
}

// ModelName reports the model used when a call does not override it
func (c *NameClassifier) ModelName() string {
	return c.model
}

func (c *NameClassifier) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return c.model
}

// ClassifyName classifies a single name via the chat API
func (c *NameClassifier) ClassifyName(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
	userPrompt := name

	req := openrouter.ChatCompletionRequest{
		Model: c.resolveModel(model),
		Messages: []openrouter.ChatMessage{
			{Role: openrouter.MessageRoleSystem, Content: &c.systemPrompt},
			{Role: openrouter.MessageRoleUser, Content: &userPrompt},
		},
		MaxTokens:      300,
		ResponseFormat: &openrouter.ResponseFormat{Type: "json_object"},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	item, parseErr := llmjson.Parse[classifier.LLMResult](content)
	if parseErr != nil {
		return nil, payloadError(parseErr, content)
	}

	if item.Name == "" {
		item.Name = name
	}
	return item, nil
}

// ClassifyNames classifies a batch of names in one request. The model
// answers with a JSON array; order and completeness are not guaranteed,
// so callers must reconcile against the requested names.
func (c *NameClassifier) ClassifyNames(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
	payload, err := json.Marshal(names)
	if err != nil {
		return nil, &classifier.ClientError{
			Message: fmt.Sprintf("failed to encode name batch: %v", err),
			Err:     err,
		}
	}
	userPrompt := string(payload)

	// No response_format here: json_object mode rejects top-level
	// arrays, which is exactly what the batch reply is.
	req := openrouter.ChatCompletionRequest{
		Model: c.resolveModel(model),
		Messages: []openrouter.ChatMessage{
			{Role: openrouter.MessageRoleSystem, Content: &c.systemPrompt},
			{Role: openrouter.MessageRoleUser, Content: &userPrompt},
		},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	items, parseErr := llmjson.Parse[[]classifier.LLMResult](content)
	if parseErr != nil {
		return nil, payloadError(parseErr, content)
	}

	return *items, nil
}

// complete runs the chat request and extracts the first choice content
func (c *NameClassifier) complete(ctx context.Context, req openrouter.ChatCompletionRequest) ([]byte, error) {
	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, asClientError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return nil, &classifier.ClientError{
			Message: "model response contained no message content",
		}
	}

	return []byte(*resp.Choices[0].Message.Content), nil
}

// asClientError converts transport-layer failures into the error type
// the orchestrator branches on
func asClientError(err error) *classifier.ClientError {
	var chatErr *openrouter.ChatCompletionError
	if errors.As(err, &chatErr) {
		return &classifier.ClientError{
			Message:    chatErr.Message,
			StatusCode: chatErr.StatusCode,
			RawBody:    chatErr.RawBody,
			Err:        err,
		}
	}

	return &classifier.ClientError{
		Message: err.Error(),
		Err:     err,
	}
}

func payloadError(err error, content []byte) *classifier.ClientError {
	return &classifier.ClientError{
		Message: fmt.Sprintf("failed to parse model payload: %v", err),
		RawBody: json.RawMessage(content),
		Err:     err,
	}
}

// loadEnvVar loads an environment variable into a pointer if no value is provided
func loadEnvVar(target *string, envKey string) (*string, error) {
	if target == nil {
		envVar := os.Getenv(envKey)
		if envVar == "" {
			return nil, fmt.Errorf("%s environment variable not set and no value provided", envKey)
		}
		return &envVar, nil
	}
	return target, nil
}
