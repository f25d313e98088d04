package classifier

import (
	"context"
	"encoding/json"
)

// LLMClient classifies names via a language model. Model selects the
// remote model; an empty string means the client's configured default.
// Implementations return *ClientError for every expected remote failure
// and must never panic.
type LLMClient interface {
	// ClassifyName classifies a single name
	ClassifyName(ctx context.Context, name string, model string) (*LLMResult, error)

	// ClassifyNames classifies a batch of names in one request. The
	// returned slice may be shorter, longer or reordered relative to
	// names; callers reconcile it against the request order.
	ClassifyNames(ctx context.Context, names []string, model string) ([]LLMResult, error)

	// ModelName reports the model an empty per-call model resolves to
	ModelName() string
}

// ClientError is the failure type the LLM tier surfaces: transport
// faults, non-OK statuses, unparseable payloads, schema violations and
// exhausted retries all collapse into it so the orchestrator can degrade
// uniformly.
type ClientError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
	Err        error           `json:"-"`
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
