package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default confidences per rule tier. Patronymic markers are the strongest
// signal, keyword fragments the weakest.
const (
	DefaultMarkerConfidence  = 0.98
	DefaultPrefixConfidence  = 0.95
	DefaultKeywordConfidence = 0.85
	DefaultSurnameConfidence = 0.90
)

// TierConfidence holds the fixed confidence assigned by each rule tier.
// Zero values fall back to the package defaults.
type TierConfidence struct {
	PatronymicMarker float64 `yaml:"patronymic_marker"`
	HonorificPrefix  float64 `yaml:"honorific_prefix"`
	Keyword          float64 `yaml:"keyword"`
	Surname          float64 `yaml:"surname"`
}

// LabelRules groups the name patterns that map to a single label. All
// patterns are matched in sanitized form, so tables may be written in
// display case ("BIN", "A/L") and still match.
type LabelRules struct {
	// PatronymicMarkers match as whole words anywhere in the name
	// (e.g. "bin", "binti", "anak", the collapsed "al" from "A/L")
	PatronymicMarkers []string `yaml:"patronymic_markers,omitempty"`

	// HonorificPrefixes match only as the first token (e.g. "nik", "wan")
	HonorificPrefixes []string `yaml:"honorific_prefixes,omitempty"`

	// Keywords match as whole words anywhere in the name
	Keywords []string `yaml:"keywords,omitempty"`

	// Surnames match only as the first token, the surname position in
	// the naming conventions this table targets
	Surnames []string `yaml:"surnames,omitempty"`
}

// RuleSet is the data-driven rule table the engine compiles. The label
// taxonomy and every pattern live here, not in engine code: supporting a
// new ethnicity or region is a table change only.
type RuleSet struct {
	// Labels is the full label set, in evaluation-priority order.
	// When two labels claim the same pattern, the earlier label wins.
	Labels []string `yaml:"labels"`

	// Rules maps a label to its patterns. Labels without rules (such as
	// Others and Uncertain) are reachable only via the LLM tier.
	Rules map[string]LabelRules `yaml:"rules"`

	// Confidence configures the per-tier confidences
	Confidence TierConfidence `yaml:"confidence"`
}

// DefaultRuleSet returns the built-in Malaysian name taxonomy: Malay
// patronymics and honorifics, romanized Chinese surnames and the
// sanitized forms of Indian patronymic abbreviations (A/L, A/P, S/O, D/O).
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Labels: []string{"Malay", "Chinese", "Indian", "Others", LabelUncertain},
		Rules: map[string]LabelRules{
			"Malay": {
				PatronymicMarkers: []string{"bin", "binti", "bt", "bte"},
				HonorificPrefixes: []string{
					"nik", "wan", "che", "syed", "sharifah",
					"tengku", "megat", "puteri", "engku", "ungku",
				},
				Keywords: []string{
					"mohamad", "mohammad", "muhammad", "muhamad", "mohd",
					"ahmad", "abdul", "abdullah", "nur", "nurul", "siti",
					"ismail", "ibrahim", "aminah",
				},
			},
			"Chinese": {
				Surnames: []string{
					"tan", "lim", "lee", "ng", "ong", "wong", "goh",
					"chua", "chan", "koh", "teo", "ang", "yeo", "tay",
					"ho", "low", "toh", "sim", "chong", "chia",
				},
			},
			"Indian": {
				PatronymicMarkers: []string{"al", "ap", "anak", "so", "do"},
			},
		},
		Confidence: defaultTierConfidence(),
	}
}

func defaultTierConfidence() TierConfidence {
	return TierConfidence{
		PatronymicMarker: DefaultMarkerConfidence,
		HonorificPrefix:  DefaultPrefixConfidence,
		Keyword:          DefaultKeywordConfidence,
		Surname:          DefaultSurnameConfidence,
	}
}

// LoadRuleSet reads and validates a YAML rule table from disk
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", path, err)
	}

	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set %s: %w", path, err)
	}

	return &rs, nil
}

// Validate checks internal consistency and fills zero confidences with
// defaults. The Uncertain label is appended if the table omits it, since
// every degraded path needs it.
func (rs *RuleSet) Validate() error {
	if len(rs.Labels) == 0 {
		return fmt.Errorf("rule set has no labels")
	}

	known := make(map[string]bool, len(rs.Labels))
	for _, label := range rs.Labels {
		if label == "" {
			return fmt.Errorf("rule set contains an empty label")
		}
		if known[label] {
			return fmt.Errorf("duplicate label %q", label)
		}
		known[label] = true
	}

	if !known[LabelUncertain] {
		rs.Labels = append(rs.Labels, LabelUncertain)
		known[LabelUncertain] = true
	}

	for label := range rs.Rules {
		if !known[label] {
			return fmt.Errorf("rules reference unknown label %q", label)
		}
	}

	defaults := defaultTierConfidence()
	if err := fillConfidence(&rs.Confidence.PatronymicMarker, defaults.PatronymicMarker, "patronymic_marker"); err != nil {
		return err
	}
	if err := fillConfidence(&rs.Confidence.HonorificPrefix, defaults.HonorificPrefix, "honorific_prefix"); err != nil {
		return err
	}
	if err := fillConfidence(&rs.Confidence.Keyword, defaults.Keyword, "keyword"); err != nil {
		return err
	}
	if err := fillConfidence(&rs.Confidence.Surname, defaults.Surname, "surname"); err != nil {
		return err
	}

	return nil
}

func fillConfidence(v *float64, def float64, tier string) error {
	if *v == 0 {
		*v = def
		return nil
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("confidence for %s tier must be in [0, 1], got %v", tier, *v)
	}
	return nil
}

// CanonicalLabel resolves a label case-insensitively against the rule
// set's label set. Returns the canonical spelling and whether it matched.
func (rs *RuleSet) CanonicalLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, known := range rs.Labels {
		if strings.EqualFold(known, label) {
			return known, true
		}
	}
	return "", false
}
