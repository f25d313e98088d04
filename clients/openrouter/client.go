package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FrenchMajesty/ethnicity-classifier/internal/retry"
)

const openrouterBaseURL = "https://openrouter.ai/api/v1"

// DefaultTimeout bounds each individual request attempt; the retry
// budget bounds the call as a whole.
const DefaultTimeout = 60 * time.Second

// NewClient creates a new OpenRouter client with default transport and
// retry settings. Fields may be adjusted before first use.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:      apiKey,
		BaseURL:     openrouterBaseURL,
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
		RetryConfig: retry.DefaultConfig(),
	}
}

// ChatCompletion sends a chat completion request with retry logic.
// Transient failures (network errors, 429, 5xx, and 200 responses whose
// message content is not parseable JSON) are retried with exponential
// backoff; other failures return immediately as *ChatCompletionError.
// Every call made through this client expects the model to answer with
// a JSON payload.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	url := c.BaseURL + "/chat/completions"

	bodyBytes, err := c.createAndRunRetryableRequest(ctx, url, req, "chat")
	if err != nil {
		return nil, err
	}

	// Parse the successful response
	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return nil, &ChatCompletionError{
			Message: fmt.Sprintf("failed to parse chat completion response: %v", err),
			RawBody: json.RawMessage(bodyBytes),
			Err:     err,
		}
	}

	return &chatResp, nil
}
