package classifier

import (
	"fmt"
	"strings"
)

// ruleEntry records which label claimed a pattern and the pattern's
// display form for reasoning strings.
type ruleEntry struct {
	label   string
	pattern string
}

// tierIndex holds the compiled patterns of one tier. Single-token
// patterns live in the map; multi-token patterns (rare, but a custom
// table may use them) are kept in declared order.
type tierIndex struct {
	tokens  map[string]ruleEntry
	phrases []ruleEntry
}

// RuleEngine evaluates the deterministic rule tiers over sanitized names.
// Tiers are ordered and short-circuiting: patronymic markers, honorific
// prefixes, keywords, then surname position. It is immutable after
// construction and safe for concurrent use.
type RuleEngine struct {
	markers  tierIndex
	prefixes tierIndex
	keywords tierIndex
	surnames tierIndex
	conf     TierConfidence
}

// NewRuleEngine compiles a rule set into lookup indexes. Patterns are
// sanitized at compile time, so a table may spell them "BINTI" or "A/L"
// and they still match the sanitized name space.
func NewRuleEngine(rs *RuleSet) (*RuleEngine, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	e := &RuleEngine{
		markers:  newTierIndex(),
		prefixes: newTierIndex(),
		keywords: newTierIndex(),
		surnames: newTierIndex(),
		conf:     rs.Confidence,
	}

	// Compile in declared label order so pattern collisions resolve to
	// the earlier label, deterministically.
	for _, label := range rs.Labels {
		rules, ok := rs.Rules[label]
		if !ok {
			continue
		}
		e.markers.add(label, rules.PatronymicMarkers)
		e.prefixes.add(label, rules.HonorificPrefixes)
		e.keywords.add(label, rules.Keywords)
		e.surnames.add(label, rules.Surnames)
	}

	return e, nil
}

func newTierIndex() tierIndex {
	return tierIndex{tokens: make(map[string]ruleEntry)}
}

func (t *tierIndex) add(label string, patterns []string) {
	for _, raw := range patterns {
		pattern := Sanitize(raw)
		if pattern == "" {
			continue
		}
		entry := ruleEntry{label: label, pattern: pattern}
		if strings.ContainsRune(pattern, ' ') {
			t.phrases = append(t.phrases, entry)
			continue
		}
		if _, taken := t.tokens[pattern]; !taken {
			t.tokens[pattern] = entry
		}
	}
}

// matchAnyWord finds the leftmost token present in the index, then falls
// back to multi-token phrases bounded by word breaks.
func (t *tierIndex) matchAnyWord(name string, tokens []string) (ruleEntry, bool) {
	for _, tok := range tokens {
		if entry, ok := t.tokens[tok]; ok {
			return entry, true
		}
	}
	padded := " " + name + " "
	for _, entry := range t.phrases {
		if strings.Contains(padded, " "+entry.pattern+" ") {
			return entry, true
		}
	}
	return ruleEntry{}, false
}

// matchLeading matches only at the start of the name: the first token,
// or a leading multi-token phrase.
func (t *tierIndex) matchLeading(name string, tokens []string) (ruleEntry, bool) {
	if len(tokens) == 0 {
		return ruleEntry{}, false
	}
	if entry, ok := t.tokens[tokens[0]]; ok {
		return entry, true
	}
	for _, entry := range t.phrases {
		if strings.HasPrefix(name+" ", entry.pattern+" ") {
			return entry, true
		}
	}
	return ruleEntry{}, false
}

// Evaluate runs the tiers against a sanitized name. The boolean reports
// whether any tier matched; an unmatched name escalates to the LLM path.
func (e *RuleEngine) Evaluate(sanitized string) (Result, bool) {
	tokens := strings.Fields(sanitized)
	if len(tokens) == 0 {
		return Result{}, false
	}

	if entry, ok := e.markers.matchAnyWord(sanitized, tokens); ok {
		return e.hit(entry, e.conf.PatronymicMarker, "patronymic marker"), true
	}

	if entry, ok := e.prefixes.matchLeading(sanitized, tokens); ok {
		return e.hit(entry, e.conf.HonorificPrefix, "honorific prefix"), true
	}

	if entry, ok := e.keywords.matchAnyWord(sanitized, tokens); ok {
		return e.hit(entry, e.conf.Keyword, "name keyword"), true
	}

	if entry, ok := e.surnames.matchLeading(sanitized, tokens); ok {
		return e.hit(entry, e.conf.Surname, "leading surname"), true
	}

	return Result{}, false
}

func (e *RuleEngine) hit(entry ruleEntry, confidence float64, kind string) Result {
	return Result{
		PredictedEthnicity: entry.label,
		Confidence:         confidence,
		Method:             MethodRuleBased,
		Reasoning:          fmt.Sprintf("matched %s %q", kind, entry.pattern),
	}
}
