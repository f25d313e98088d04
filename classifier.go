package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
)

// Classifier infers ethnicity from names with a two-tier decision
// process: deterministic pattern rules first, LLM fallback second, with
// exact-key result caching in between. It never returns an error and
// never panics; every failure collapses into a degraded Uncertain
// result carrying a diagnostic. Safe for concurrent use.
type Classifier struct {
	engine    *RuleEngine
	rules     *RuleSet
	llm       LLMClient
	model     string
	threshold float64
	batchSize int
	cache     *ResultCache
	logger    *slog.Logger

	// Metrics tracking
	totalClassifications int
	ruleMatches          int
	cacheHits            int
	llmCalls             int
	degradedResults      int
	metricsLock          sync.RWMutex
}

// New creates a new Classifier with the given configuration
func New(cfg Config) (*Classifier, error) {
	cfg.applyDefaults()

	engine, err := NewRuleEngine(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule set: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("classifier")
	}

	return &Classifier{
		engine:    engine,
		rules:     cfg.Rules,
		llm:       cfg.LLM,
		model:     cfg.Model,
		threshold: cfg.AcceptThreshold,
		batchSize: cfg.BatchSize,
		cache:     cfg.Cache,
		logger:    logger,
	}, nil
}

// Option adjusts a single Classify or ClassifyBatch call
type Option func(*callOptions)

type callOptions struct {
	model       string
	bypassCache bool
}

// WithModel overrides the model identifier for this call. Results cache
// under the overridden model, independently of the default.
func WithModel(model string) Option {
	return func(o *callOptions) {
		o.model = model
	}
}

// WithoutCache makes this call skip the result cache entirely: nothing
// is read from it and the fresh result is not stored.
func WithoutCache() Option {
	return func(o *callOptions) {
		o.bypassCache = true
	}
}

func (c *Classifier) newCall(opts []Option) callOptions {
	var call callOptions
	for _, opt := range opts {
		opt(&call)
	}
	call.model = c.resolveModel(call.model)
	return call
}

// resolveModel picks the effective model: per-call override, then the
// configured default, then the client's own default.
func (c *Classifier) resolveModel(override string) string {
	if override != "" {
		return override
	}
	if c.model != "" {
		return c.model
	}
	if c.llm != nil {
		return c.llm.ModelName()
	}
	return ""
}

// Classify classifies a single name. The result is always fully
// populated; inspect Result.Err to distinguish degraded outcomes.
func (c *Classifier) Classify(ctx context.Context, name string, opts ...Option) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered panic during classification", "panic", r)
			c.recordDegraded()
			result = Result{
				PredictedEthnicity: LabelUncertain,
				Confidence:         0,
				Method:             MethodOrchestratorError,
				Err:                fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	call := c.newCall(opts)
	sanitized := Sanitize(name)
	key := CacheKey(sanitized, call.model)

	if !call.bypassCache {
		if cached, ok := c.cache.Get(key); ok {
			c.recordCacheHit()
			return cached
		}
	}

	result = c.classifyMiss(ctx, sanitized, call)
	c.recordClassification()

	if !call.bypassCache {
		c.cache.Put(key, result)
	}
	return result
}

// classifyMiss runs the rule tier and, if needed, the LLM tier for a
// name not served by the cache.
func (c *Classifier) classifyMiss(ctx context.Context, sanitized string, call callOptions) Result {
	if hit, ok := c.engine.Evaluate(sanitized); ok && hit.Confidence >= c.threshold {
		c.recordRuleMatch()
		return hit
	}

	if c.llm == nil {
		c.recordDegraded()
		return Result{
			PredictedEthnicity: LabelUncertain,
			Confidence:         0,
			Method:             MethodRuleBased,
			Err:                "No LLM API key/model provided",
		}
	}

	c.recordLLMCalls(1)
	item, err := c.llm.ClassifyName(ctx, sanitized, call.model)
	if err != nil {
		c.logger.Warn("llm classification failed", "name", sanitized, "error", err)
		c.recordDegraded()
		return Result{
			PredictedEthnicity: LabelUncertain,
			Confidence:         0,
			Method:             MethodLLM,
			ModelUsed:          call.model,
			Err:                err.Error(),
		}
	}

	result := ResolveLLMResult(c.rules, call.model, item)
	if result.Err != "" {
		c.recordDegraded()
	}
	return result
}

// ClassifyBatch classifies many names in one pass. Names already
// resolvable from the cache or the rule tier never reach the LLM; the
// remainder is dispatched in chunks of the configured batch size. The
// returned slice always matches names in length and order.
func (c *Classifier) ClassifyBatch(ctx context.Context, names []string, opts ...Option) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered panic during batch classification", "panic", r)
			results = make([]Result, len(names))
			for i := range results {
				c.recordDegraded()
				results[i] = Result{
					PredictedEthnicity: LabelUncertain,
					Confidence:         0,
					Method:             MethodOrchestratorError,
					Err:                fmt.Sprintf("internal error: %v", r),
				}
			}
		}
	}()

	call := c.newCall(opts)
	results = make([]Result, len(names))

	type pendingName struct {
		index     int
		sanitized string
	}
	var pending []pendingName

	for i, name := range names {
		sanitized := Sanitize(name)
		key := CacheKey(sanitized, call.model)

		if !call.bypassCache {
			if cached, ok := c.cache.Get(key); ok {
				c.recordCacheHit()
				results[i] = cached
				continue
			}
		}

		if hit, ok := c.engine.Evaluate(sanitized); ok && hit.Confidence >= c.threshold {
			c.recordRuleMatch()
			c.recordClassification()
			results[i] = hit
			if !call.bypassCache {
				c.cache.Put(key, hit)
			}
			continue
		}

		pending = append(pending, pendingName{index: i, sanitized: sanitized})
	}

	if len(pending) == 0 {
		return results
	}

	if c.llm == nil {
		for _, p := range pending {
			c.recordDegraded()
			c.recordClassification()
			results[p.index] = Result{
				PredictedEthnicity: LabelUncertain,
				Confidence:         0,
				Method:             MethodRuleBased,
				Err:                "No LLM API key/model provided",
			}
			if !call.bypassCache {
				c.cache.Put(CacheKey(p.sanitized, call.model), results[p.index])
			}
		}
		return results
	}

	for start := 0; start < len(pending); start += c.batchSize {
		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		chunkNames := make([]string, len(chunk))
		for j, p := range chunk {
			chunkNames[j] = p.sanitized
		}

		c.recordLLMCalls(len(chunk))
		items, err := c.llm.ClassifyNames(ctx, chunkNames, call.model)
		if err != nil {
			c.logger.Warn("llm batch classification failed",
				"batch_size", len(chunk), "error", err)
		}

		chunkResults := ReconcileBatch(c.rules, call.model, chunkNames, items, err)
		for j, p := range chunk {
			result := chunkResults[j]
			if result.Err != "" {
				c.recordDegraded()
			}
			c.recordClassification()
			results[p.index] = result
			if !call.bypassCache {
				c.cache.Put(CacheKey(p.sanitized, call.model), result)
			}
		}
	}

	return results
}

// GetMetrics returns current classification metrics
func (c *Classifier) GetMetrics() Metrics {
	c.metricsLock.RLock()
	defer c.metricsLock.RUnlock()

	var cacheHitRate float64
	if c.totalClassifications > 0 {
		cacheHitRate = float64(c.cacheHits) / float64(c.totalClassifications) * 100
	}

	return Metrics{
		TotalClassifications: c.totalClassifications,
		RuleMatches:          c.ruleMatches,
		CacheHits:            c.cacheHits,
		LLMCalls:             c.llmCalls,
		DegradedResults:      c.degradedResults,
		CacheHitRate:         cacheHitRate,
	}
}

// recordCacheHit records a classification served from cache
func (c *Classifier) recordCacheHit() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.totalClassifications++
	c.cacheHits++
}

// recordClassification records a freshly computed classification
func (c *Classifier) recordClassification() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.totalClassifications++
}

func (c *Classifier) recordRuleMatch() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.ruleMatches++
}

func (c *Classifier) recordLLMCalls(n int) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.llmCalls += n
}

func (c *Classifier) recordDegraded() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.degradedResults++
}
