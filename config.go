package classifier

import "log/slog"

const (
	// DefaultAcceptThreshold is the minimum rule confidence accepted
	// before escalating to the LLM tier
	DefaultAcceptThreshold = 0.85

	// DefaultBatchSize is the number of names sent per batch LLM request
	DefaultBatchSize = 100
)

// Config holds configuration for the Classifier
type Config struct {
	// Rules is the rule table the deterministic tier compiles.
	// If nil, uses the built-in Malaysian taxonomy.
	Rules *RuleSet

	// LLM performs the fallback classification. If nil, the classifier
	// runs in rule-only mode: unmatched names degrade to Uncertain
	// instead of erroring.
	LLM LLMClient

	// Model is the default model identifier for LLM dispatches.
	// If empty, the client's own default applies.
	Model string

	// AcceptThreshold gates rule-tier results (0.0 to 1.0). Matches
	// below it escalate to the LLM. If 0, uses DefaultAcceptThreshold.
	AcceptThreshold float64

	// BatchSize chunks batch LLM dispatches. If 0, uses DefaultBatchSize.
	BatchSize int

	// Cache stores classification results for the classifier's
	// lifetime. If nil, a new unbounded cache is created.
	Cache *ResultCache

	// Logger receives orchestration logs. If nil, uses the process
	// default logger.
	Logger *slog.Logger
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.Rules == nil {
		c.Rules = DefaultRuleSet()
	}

	if c.AcceptThreshold == 0 {
		c.AcceptThreshold = DefaultAcceptThreshold
	}

	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	if c.Cache == nil {
		c.Cache = NewResultCache()
	}
}
