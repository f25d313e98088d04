package openrouter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/FrenchMajesty/ethnicity-classifier/internal/retry"
)

// Client is a minimal client for the OpenRouter chat completions API
type Client struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	RetryConfig  retry.Config
	DumpRequests bool

	// Referer and Title set the optional HTTP-Referer and X-Title
	// attribution headers OpenRouter uses for app rankings
	Referer string
	Title   string

	// Logger receives retry diagnostics. If nil, a component logger
	// on the process default is used.
	Logger retry.Logger
}

// LanguageModelClient is the surface adapters program against
type LanguageModelClient interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest is the request body for the chat completions endpoint
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type,omitempty"`
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content *string     `json:"content,omitempty"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionResponse is the response from the chat completions endpoint
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   ChatCompletionUsage    `json:"usage"`
}

type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatError is the error object OpenRouter embeds in failure payloads,
// occasionally inside a 200 response when an upstream provider fails
type ChatError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

type ChatCompletionResponseError struct {
	Error *ChatError `json:"error"`
}

// ChatCompletionError wraps request failures with the raw response body
// so callers can log exactly what the API returned
type ChatCompletionError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
	Err        error           `json:"-"`
}

func (e *ChatCompletionError) Error() string {
	return e.Message
}

func (e *ChatCompletionError) Unwrap() error {
	return e.Err
}

// GetRawResponseBody returns the raw response body if available
func (e *ChatCompletionError) GetRawResponseBody() json.RawMessage {
	return e.RawBody
}
