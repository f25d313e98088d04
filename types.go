package classifier

// Method identifies which decision path produced a classification result
type Method string

const (
	// MethodRuleBased means a deterministic name-pattern rule decided the label
	MethodRuleBased Method = "rule-based"

	// MethodLLM means the label came from (or was attempted via) the language model
	MethodLLM Method = "llm"

	// MethodOrchestratorError means an internal fault was recovered mid-classification
	MethodOrchestratorError Method = "orchestrator-error"
)

// LabelUncertain is the fallback label used whenever no confident
// classification could be made. It is always part of the label set.
const LabelUncertain = "Uncertain"

// Result represents the classification result for a single name
type Result struct {
	// PredictedEthnicity is the assigned label, always a member of the
	// configured label set
	PredictedEthnicity string `json:"predicted_ethnicity"`

	// Confidence is the certainty of the prediction in [0, 1].
	// Degraded results carry 0.
	Confidence float64 `json:"confidence"`

	// Method records which path produced this result
	Method Method `json:"method"`

	// Reasoning is a human-readable explanation. May be empty, never absent.
	Reasoning string `json:"reasoning"`

	// ModelUsed is the LLM model identifier, empty for rule-based results
	ModelUsed string `json:"model_used,omitempty"`

	// Err carries the diagnostic for degraded results, empty on success
	Err string `json:"error,omitempty"`
}

// LLMResult is the raw per-name payload the language model returns,
// before reconciliation and label canonicalization.
type LLMResult struct {
	Name       string  `json:"name"`
	Ethnicity  string  `json:"ethnicity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Metrics provides statistics about the classifier's state
type Metrics struct {
	// TotalClassifications is the number of names classified so far
	TotalClassifications int

	// RuleMatches is the number of names resolved by the rule tier
	RuleMatches int

	// CacheHits is the number of names served from the result cache
	CacheHits int

	// LLMCalls is the number of names that reached the language model
	LLMCalls int

	// DegradedResults is the number of Uncertain fallbacks due to failures
	DegradedResults int

	// CacheHitRate is the percentage of classifications served from cache
	CacheHitRate float64
}
