package classifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/pkg/testutil"
)

func newClassifier(t *testing.T, cfg classifier.Config) *classifier.Classifier {
	t.Helper()
	cls, err := classifier.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}
	return cls
}

func llmAnswer(label string, confidence float64) func(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
	return func(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
		return &classifier.LLMResult{
			Name:       name,
			Ethnicity:  label,
			Confidence: confidence,
			Reasoning:  "model judgment",
		}, nil
	}
}

// TestClassifier_RuleBased verifies rule-tier names never reach the LLM
func TestClassifier_RuleBased(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "MOHAMAD SYED BIN CHE'GOOS")
	if result.PredictedEthnicity != "Malay" {
		t.Errorf("Expected Malay, got %q", result.PredictedEthnicity)
	}
	if result.Confidence < 0.95 {
		t.Errorf("Expected confidence >= 0.95, got %v", result.Confidence)
	}
	if result.Method != classifier.MethodRuleBased {
		t.Errorf("Expected rule-based method, got %q", result.Method)
	}
	if result.ModelUsed != "" {
		t.Errorf("Expected empty model for rule results, got %q", result.ModelUsed)
	}
	if result.Err != "" {
		t.Errorf("Expected no diagnostic, got %q", result.Err)
	}

	result = cls.Classify(context.Background(), "Tan Ah Kow")
	if result.PredictedEthnicity != "Chinese" || result.Confidence != 0.90 {
		t.Errorf("Expected Chinese at surname confidence, got %+v", result)
	}

	if mockLLM.CallCount != 0 {
		t.Errorf("Expected LLM to not be called, but it was called %d times", mockLLM.CallCount)
	}
}

// TestClassifier_NoLLMDegraded verifies rule-only mode degrades unmatched
// names instead of erroring
func TestClassifier_NoLLMDegraded(t *testing.T) {
	cls := newClassifier(t, classifier.Config{})

	want := classifier.Result{
		PredictedEthnicity: classifier.LabelUncertain,
		Confidence:         0,
		Method:             classifier.MethodRuleBased,
		Err:                "No LLM API key/model provided",
	}
	got := cls.Classify(context.Background(), "John Smith")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Degraded result mismatch (-want +got):\n%s", diff)
	}

	// Rule-tier names still classify normally without an LLM.
	got = cls.Classify(context.Background(), "Tan Ah Kow")
	if got.PredictedEthnicity != "Chinese" || got.Err != "" {
		t.Errorf("Expected a clean rule result in rule-only mode, got %+v", got)
	}
}

// TestClassifier_LLMFallback verifies unmatched names escalate to the LLM
func TestClassifier_LLMFallback(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Indian", 0.88),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "Raj Kumar")
	if result.PredictedEthnicity != "Indian" {
		t.Errorf("Expected Indian, got %q", result.PredictedEthnicity)
	}
	if result.Confidence != 0.88 {
		t.Errorf("Expected confidence 0.88, got %v", result.Confidence)
	}
	if result.Method != classifier.MethodLLM {
		t.Errorf("Expected llm method, got %q", result.Method)
	}
	if result.ModelUsed != "mock/model" {
		t.Errorf("Expected the client default model, got %q", result.ModelUsed)
	}

	if mockLLM.CallCount != 1 {
		t.Errorf("Expected LLM to be called once, but it was called %d times", mockLLM.CallCount)
	}
	if mockLLM.LastName != "raj kumar" {
		t.Errorf("Expected the LLM to receive the sanitized name, got %q", mockLLM.LastName)
	}
}

// TestClassifier_CacheIdempotence verifies repeat classifications are
// served from cache
func TestClassifier_CacheIdempotence(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Indian", 0.88),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	first := cls.Classify(context.Background(), "Raj Kumar")
	second := cls.Classify(context.Background(), "raj   KUMAR")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Cached result mismatch (-first +second):\n%s", diff)
	}
	if mockLLM.CallCount != 1 {
		t.Errorf("Expected 1 LLM call across both classifications, got %d", mockLLM.CallCount)
	}

	metrics := cls.GetMetrics()
	if metrics.CacheHits != 1 {
		t.Errorf("Expected 1 cache hit, got %d", metrics.CacheHits)
	}
}

// TestClassifier_CacheBypass verifies WithoutCache skips reads and writes
func TestClassifier_CacheBypass(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Indian", 0.88),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	cls.Classify(context.Background(), "Raj Kumar", classifier.WithoutCache())
	cls.Classify(context.Background(), "Raj Kumar", classifier.WithoutCache())
	if mockLLM.CallCount != 2 {
		t.Errorf("Expected 2 LLM calls with cache bypassed, got %d", mockLLM.CallCount)
	}

	// The bypassed results were not stored either: a normal call misses.
	cls.Classify(context.Background(), "Raj Kumar")
	if mockLLM.CallCount != 3 {
		t.Errorf("Expected a third LLM call after bypassed runs, got %d", mockLLM.CallCount)
	}

	// And a bypassed call ignores what the normal call just cached.
	cls.Classify(context.Background(), "Raj Kumar", classifier.WithoutCache())
	if mockLLM.CallCount != 4 {
		t.Errorf("Expected a bypassed call to skip the cache read, got %d calls", mockLLM.CallCount)
	}
}

// TestClassifier_ModelOverride verifies per-call models cache separately
func TestClassifier_ModelOverride(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Indian", 0.88),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM, Model: "default/model"})

	cls.Classify(context.Background(), "Raj Kumar")
	result := cls.Classify(context.Background(), "Raj Kumar", classifier.WithModel("other/model"))

	if mockLLM.CallCount != 2 {
		t.Errorf("Expected 2 LLM calls for 2 distinct models, got %d", mockLLM.CallCount)
	}
	if mockLLM.LastModel != "other/model" {
		t.Errorf("Expected the override model to reach the client, got %q", mockLLM.LastModel)
	}
	if result.ModelUsed != "other/model" {
		t.Errorf("Expected ModelUsed to carry the override, got %q", result.ModelUsed)
	}
}

// TestClassifier_LLMError verifies client failures degrade to Uncertain
func TestClassifier_LLMError(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: func(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
			return nil, errors.New("max retries reached for OpenRouter chat API after 4 attempts")
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "Raj Kumar")
	if result.PredictedEthnicity != classifier.LabelUncertain || result.Confidence != 0 {
		t.Errorf("Expected degraded Uncertain, got %+v", result)
	}
	if result.Method != classifier.MethodLLM {
		t.Errorf("Expected llm method on client failure, got %q", result.Method)
	}
	if result.Err != "max retries reached for OpenRouter chat API after 4 attempts" {
		t.Errorf("Expected the client diagnostic, got %q", result.Err)
	}

	metrics := cls.GetMetrics()
	if metrics.DegradedResults != 1 {
		t.Errorf("Expected 1 degraded result, got %d", metrics.DegradedResults)
	}
}

// TestClassifier_UnrecognizedLabel verifies off-taxonomy answers degrade
func TestClassifier_UnrecognizedLabel(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Martian", 0.99),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "Raj Kumar")
	if result.PredictedEthnicity != classifier.LabelUncertain {
		t.Errorf("Expected Uncertain for unrecognized label, got %q", result.PredictedEthnicity)
	}
	if result.Err != `model returned unrecognized label "Martian"` {
		t.Errorf("Expected label diagnostic, got %q", result.Err)
	}
}

// TestClassifier_UncertainIsTerminal verifies an LLM answer of Uncertain
// is a final, cacheable result
func TestClassifier_UncertainIsTerminal(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Uncertain", 0.3),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "X Y Z")
	if result.PredictedEthnicity != classifier.LabelUncertain || result.Confidence != 0.3 {
		t.Errorf("Expected Uncertain at model confidence, got %+v", result)
	}
	if result.Err != "" {
		t.Errorf("Expected a clean result, got diagnostic %q", result.Err)
	}

	cls.Classify(context.Background(), "X Y Z")
	if mockLLM.CallCount != 1 {
		t.Errorf("Expected the Uncertain answer to be cached, got %d calls", mockLLM.CallCount)
	}
}

// TestClassifier_PanicRecovery verifies panics surface as degraded
// orchestrator-error results and are never cached
func TestClassifier_PanicRecovery(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: func(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
			panic("client bug")
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	result := cls.Classify(context.Background(), "Raj Kumar")
	if result.PredictedEthnicity != classifier.LabelUncertain {
		t.Errorf("Expected Uncertain after panic, got %q", result.PredictedEthnicity)
	}
	if result.Method != classifier.MethodOrchestratorError {
		t.Errorf("Expected orchestrator-error method, got %q", result.Method)
	}
	if result.Err != "internal error: client bug" {
		t.Errorf("Expected panic diagnostic, got %q", result.Err)
	}

	// The transient fault is not sticky: once the client recovers, the
	// same name classifies normally.
	mockLLM.ClassifyNameFunc = llmAnswer("Indian", 0.88)
	result = cls.Classify(context.Background(), "Raj Kumar")
	if result.PredictedEthnicity != "Indian" {
		t.Errorf("Expected a fresh classification after recovery, got %+v", result)
	}
	if mockLLM.CallCount != 2 {
		t.Errorf("Expected the panic result to not be cached, got %d calls", mockLLM.CallCount)
	}
}

// TestClassifier_AcceptThreshold verifies rule hits below the threshold
// escalate to the LLM
func TestClassifier_AcceptThreshold(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Chinese", 0.93),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM, AcceptThreshold: 0.95})

	// The surname tier's 0.90 no longer clears the bar.
	result := cls.Classify(context.Background(), "Tan Ah Kow")
	if result.Method != classifier.MethodLLM {
		t.Errorf("Expected escalation to the LLM, got method %q", result.Method)
	}
	if mockLLM.CallCount != 1 {
		t.Errorf("Expected 1 LLM call, got %d", mockLLM.CallCount)
	}

	// Markers at 0.98 still pass.
	result = cls.Classify(context.Background(), "Ali bin Hassan")
	if result.Method != classifier.MethodRuleBased {
		t.Errorf("Expected a rule result above the threshold, got %+v", result)
	}
	if mockLLM.CallCount != 1 {
		t.Errorf("Expected no extra LLM call, got %d", mockLLM.CallCount)
	}
}

// TestClassifier_Batch verifies mixed batches keep order and only send
// unresolved names to the LLM
func TestClassifier_Batch(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNamesFunc: func(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
			items := make([]classifier.LLMResult, 0, len(names))
			for _, name := range names {
				items = append(items, classifier.LLMResult{
					Name: name, Ethnicity: "Others", Confidence: 0.75, Reasoning: "model judgment",
				})
			}
			return items, nil
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	names := []string{"Tan Ah Kow", "Raj Kumar", "MOHAMAD SYED BIN CHE'GOOS", "John Smith"}
	results := cls.ClassifyBatch(context.Background(), names)

	if len(results) != len(names) {
		t.Fatalf("Expected %d results, got %d", len(names), len(results))
	}
	if results[0].PredictedEthnicity != "Chinese" || results[0].Method != classifier.MethodRuleBased {
		t.Errorf("Expected rule result for %q, got %+v", names[0], results[0])
	}
	if results[1].PredictedEthnicity != "Others" || results[1].Method != classifier.MethodLLM {
		t.Errorf("Expected LLM result for %q, got %+v", names[1], results[1])
	}
	if results[2].PredictedEthnicity != "Malay" {
		t.Errorf("Expected rule result for %q, got %+v", names[2], results[2])
	}
	if results[3].PredictedEthnicity != "Others" {
		t.Errorf("Expected LLM result for %q, got %+v", names[3], results[3])
	}

	if mockLLM.BatchCallCount != 1 {
		t.Errorf("Expected 1 batch LLM call, got %d", mockLLM.BatchCallCount)
	}
	wantSent := []string{"raj kumar", "john smith"}
	if diff := cmp.Diff(wantSent, mockLLM.LastNames); diff != "" {
		t.Errorf("LLM-bound names mismatch (-want +got):\n%s", diff)
	}

	// A repeat batch is served entirely from cache.
	cls.ClassifyBatch(context.Background(), names)
	if mockLLM.BatchCallCount != 1 {
		t.Errorf("Expected repeat batch to hit the cache, got %d batch calls", mockLLM.BatchCallCount)
	}
}

// TestClassifier_BatchChunking verifies batches split by BatchSize
func TestClassifier_BatchChunking(t *testing.T) {
	var chunkSizes []int
	var mu sync.Mutex
	mockLLM := &testutil.MockLLMClient{
		ClassifyNamesFunc: func(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
			mu.Lock()
			chunkSizes = append(chunkSizes, len(names))
			mu.Unlock()
			items := make([]classifier.LLMResult, 0, len(names))
			for _, name := range names {
				items = append(items, classifier.LLMResult{Name: name, Ethnicity: "Others", Confidence: 0.7})
			}
			return items, nil
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM, BatchSize: 2})

	names := []string{"aaa bbb", "ccc ddd", "eee fff", "ggg hhh", "iii jjj"}
	results := cls.ClassifyBatch(context.Background(), names)

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	if diff := cmp.Diff([]int{2, 2, 1}, chunkSizes); diff != "" {
		t.Errorf("Chunk sizes mismatch (-want +got):\n%s", diff)
	}
}

// TestClassifier_BatchNoLLM verifies rule-only batch classification
func TestClassifier_BatchNoLLM(t *testing.T) {
	cls := newClassifier(t, classifier.Config{})

	results := cls.ClassifyBatch(context.Background(), []string{"Tan Ah Kow", "John Smith"})
	if results[0].PredictedEthnicity != "Chinese" {
		t.Errorf("Expected rule result, got %+v", results[0])
	}
	if results[1].Err != "No LLM API key/model provided" {
		t.Errorf("Expected degraded result, got %+v", results[1])
	}
}

// TestClassifier_BatchError verifies a failed batch call degrades every
// name in that chunk
func TestClassifier_BatchError(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNamesFunc: func(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
			return nil, errors.New("boom")
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	results := cls.ClassifyBatch(context.Background(), []string{"Raj Kumar", "John Smith"})
	for i, res := range results {
		if res.PredictedEthnicity != classifier.LabelUncertain {
			t.Errorf("Entry %d: expected Uncertain, got %+v", i, res)
		}
		if res.Err != "batch classification failed: boom" {
			t.Errorf("Entry %d: expected batch diagnostic, got %q", i, res.Err)
		}
	}
}

// TestClassifier_BatchPanic verifies batch panics degrade the whole slice
func TestClassifier_BatchPanic(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNamesFunc: func(ctx context.Context, names []string, model string) ([]classifier.LLMResult, error) {
			panic("client bug")
		},
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	results := cls.ClassifyBatch(context.Background(), []string{"Raj Kumar", "John Smith"})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Method != classifier.MethodOrchestratorError {
			t.Errorf("Entry %d: expected orchestrator-error, got %+v", i, res)
		}
	}
}

// TestClassifier_Metrics verifies the counters and hit rate
func TestClassifier_Metrics(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Indian", 0.88),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	cls.Classify(context.Background(), "Tan Ah Kow")   // rule match
	cls.Classify(context.Background(), "Raj Kumar")    // LLM call
	cls.Classify(context.Background(), "Raj Kumar")    // cache hit
	mockLLM.ClassifyNameFunc = func(ctx context.Context, name string, model string) (*classifier.LLMResult, error) {
		return nil, errors.New("boom")
	}
	cls.Classify(context.Background(), "John Smith") // degraded

	metrics := cls.GetMetrics()
	if metrics.TotalClassifications != 4 {
		t.Errorf("Expected 4 total classifications, got %d", metrics.TotalClassifications)
	}
	if metrics.RuleMatches != 1 {
		t.Errorf("Expected 1 rule match, got %d", metrics.RuleMatches)
	}
	if metrics.CacheHits != 1 {
		t.Errorf("Expected 1 cache hit, got %d", metrics.CacheHits)
	}
	if metrics.LLMCalls != 2 {
		t.Errorf("Expected 2 LLM calls, got %d", metrics.LLMCalls)
	}
	if metrics.DegradedResults != 1 {
		t.Errorf("Expected 1 degraded result, got %d", metrics.DegradedResults)
	}
	if metrics.CacheHitRate != 25.0 {
		t.Errorf("Expected 25%% cache hit rate, got %.2f%%", metrics.CacheHitRate)
	}
}

// TestClassifier_Concurrent exercises parallel classification of a mixed
// working set
func TestClassifier_Concurrent(t *testing.T) {
	mockLLM := &testutil.MockLLMClient{
		ClassifyNameFunc: llmAnswer("Others", 0.8),
	}
	cls := newClassifier(t, classifier.Config{LLM: mockLLM})

	names := []string{"Tan Ah Kow", "Raj Kumar", "MOHAMAD ALI", "John Smith"}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result := cls.Classify(context.Background(), names[n%len(names)])
			if result.PredictedEthnicity == "" {
				t.Error("Expected a populated result under concurrency")
			}
		}(i)
	}
	wg.Wait()

	metrics := cls.GetMetrics()
	if metrics.TotalClassifications != 16 {
		t.Errorf("Expected 16 total classifications, got %d", metrics.TotalClassifications)
	}
}
