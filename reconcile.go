package classifier

import (
	"fmt"
	"math"
)

// ReconcileBatch aligns a batch LLM response with the names that were
// requested. The output always has one entry per requested name, in
// request order, no matter how incomplete, reordered or over-long the
// response was. Items are matched by the name the model echoes back,
// compared in sanitized form.
//
// A non-nil batchErr poisons the whole batch: every entry degrades to
// Uncertain carrying the batch-level diagnostic. Individually missing or
// invalid items degrade only themselves.
func ReconcileBatch(rules *RuleSet, model string, requested []string, items []LLMResult, batchErr error) []Result {
	results := make([]Result, len(requested))

	if batchErr != nil {
		for i := range requested {
			results[i] = degraded(model, fmt.Sprintf("batch classification failed: %v", batchErr))
		}
		return results
	}

	// First item claiming a name wins; later duplicates are ignored.
	byName := make(map[string]*LLMResult, len(items))
	for i := range items {
		key := Sanitize(items[i].Name)
		if key == "" {
			continue
		}
		if _, taken := byName[key]; !taken {
			byName[key] = &items[i]
		}
	}

	for i, name := range requested {
		item, ok := byName[Sanitize(name)]
		if !ok {
			results[i] = degraded(model, "No result")
			continue
		}
		results[i] = resolveItem(rules, model, item)
	}

	return results
}

// ResolveLLMResult converts a single-name LLM payload into a final
// result, canonicalizing the label and guarding the confidence range.
func ResolveLLMResult(rules *RuleSet, model string, item *LLMResult) Result {
	return resolveItem(rules, model, item)
}

func resolveItem(rules *RuleSet, model string, item *LLMResult) Result {
	if item.Confidence < 0 || item.Confidence > 1 || math.IsNaN(item.Confidence) {
		return degraded(model, fmt.Sprintf("model returned confidence %v outside [0, 1]", item.Confidence))
	}

	label, ok := rules.CanonicalLabel(item.Ethnicity)
	if !ok {
		return degraded(model, fmt.Sprintf("model returned unrecognized label %q", item.Ethnicity))
	}

	return Result{
		PredictedEthnicity: label,
		Confidence:         item.Confidence,
		Method:             MethodLLM,
		Reasoning:          item.Reasoning,
		ModelUsed:          model,
	}
}

func degraded(model, diagnostic string) Result {
	return Result{
		PredictedEthnicity: LabelUncertain,
		Confidence:         0,
		Method:             MethodLLM,
		ModelUsed:          model,
		Err:                diagnostic,
	}
}
