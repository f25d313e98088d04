package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/ethnicity-classifier/internal/llmjson"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/retry"
)

// isRetryableError determines if an error should trigger a retry.
// Client-side mistakes (4xx other than rate limiting) never retry.
func (c *Client) isRetryableError(err error, statusCode int, responseBody []byte) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	// Retry on server errors (5xx)
	if statusCode >= 500 {
		return true
	}

	// Retry on rate limiting (429)
	if statusCode == 429 {
		return true
	}

	// A 200 is only usable if it carries parseable JSON content; models
	// and upstream providers occasionally return truncated or garbled
	// output that succeeds on a second attempt
	if statusCode == http.StatusOK {
		return !hasUsableJSONContent(responseBody)
	}

	return false
}

// hasUsableJSONContent reports whether a 200 body is a well-formed chat
// completion whose first choice content parses as JSON after fence
// stripping. OpenRouter can also embed a provider error object inside a
// 200 payload; that counts as unusable.
func hasUsableJSONContent(responseBody []byte) bool {
	var errResp ChatCompletionResponseError
	if json.Unmarshal(responseBody, &errResp) == nil && errResp.Error != nil {
		return false
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(responseBody, &resp); err != nil {
		return false
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return false
	}

	return llmjson.Valid([]byte(*resp.Choices[0].Message.Content))
}

// createAndRunRetryableRequest executes an HTTP request with retry
// logic, collapsing retry exhaustion into a ChatCompletionError.
func (c *Client) createAndRunRetryableRequest(ctx context.Context, url string, requestBody any, apiName string) ([]byte, error) {
	opts := retry.Options{
		Config:       c.RetryConfig,
		ErrorChecker: c.isRetryableError,
		Logger:       c.retryLogger(),
		APIName:      "OpenRouter " + apiName,
	}

	retryableFn := c.buildRetryableFn(ctx, url, requestBody, apiName)

	result, err := retry.Execute(ctx, opts, retryableFn)
	if err != nil {
		var exhausted *retry.RetryExhaustedError
		if errors.As(err, &exhausted) {
			return nil, &ChatCompletionError{
				Message:    fmt.Sprintf("max retries reached for OpenRouter %s API after %d attempts", apiName, exhausted.MaxAttempts),
				StatusCode: exhausted.LastStatusCode,
				RawBody:    json.RawMessage(exhausted.LastResponse),
				Err:        exhausted.LastErr,
			}
		}
		return nil, err
	}

	return result.([]byte), nil
}

// buildRetryableFn builds a retryable function for the given request body
func (c *Client) buildRetryableFn(ctx context.Context, url string, requestBody any, apiName string) retry.RetryableFunc {
	return func(attempt int) (any, int, []byte, error) {
		body, err := json.Marshal(requestBody)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("failed to marshal %s request: %w", apiName, err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
		if err != nil {
			return nil, 0, nil, fmt.Errorf("failed to create HTTP request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		if c.Referer != "" {
			httpReq.Header.Set("HTTP-Referer", c.Referer)
		}
		if c.Title != "" {
			httpReq.Header.Set("X-Title", c.Title)
		}

		resp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, 0, nil, err
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, nil, fmt.Errorf("failed to read %s response body: %w", apiName, err)
		}

		// Dump the request/response if enabled for debugging purposes
		chatReq, ok := requestBody.(ChatCompletionRequest)
		if c.DumpRequests && ok {
			saveResponseToFile(chatReq.Model, chatReq, bodyBytes, resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, bodyBytes, &ChatCompletionError{
				Message:    fmt.Sprintf("openrouter %s API error %d", apiName, resp.StatusCode),
				StatusCode: resp.StatusCode,
				RawBody:    json.RawMessage(bodyBytes),
			}
		}

		return bodyBytes, resp.StatusCode, bodyBytes, nil
	}
}

func (c *Client) retryLogger() retry.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	logger := logging.New("openrouter")
	return func(message string, args ...any) {
		logger.Info(fmt.Sprintf(message, args...))
	}
}

// saveResponseToFile saves the request/response to a file for debugging purposes
func saveResponseToFile(model string, req ChatCompletionRequest, bodyBytes []byte, statusCode int) {
	logger := logging.New("openrouter")

	// Unique filename from timestamp plus a short random suffix
	timestamp := time.Now().Format("20060102_150405")
	random := uuid.New().String()[:8]
	filename := fmt.Sprintf("openrouter_req_%s_%s.json", timestamp, random)

	// Model-specific directory
	modelDir := filepath.Join("debug_llm_requests", filepath.Base(model))
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		logger.Error("failed to create dump directory", "dir", modelDir, "error", err)
		return
	}

	var responseBody any
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		responseBody = string(bodyBytes)
	}

	responseData := map[string]any{
		"request":  req,
		"response": responseBody,
		"status":   statusCode,
	}

	jsonData, err := json.MarshalIndent(responseData, "", "  ")
	if err != nil {
		logger.Error("failed to marshal dump data", "error", err)
		return
	}

	path := filepath.Join(modelDir, filename)
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		logger.Error("failed to write dump file", "path", path, "error", err)
	}
}
