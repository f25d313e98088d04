package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FrenchMajesty/ethnicity-classifier/clients/openrouter"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/llmjson"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
)

// DefaultColumnThreshold is the minimum confidence an LLM column
// detection must report before it is trusted
const DefaultColumnThreshold = 0.6

// columnSampleSize caps how many rows feed column analysis
const columnSampleSize = 5

// noneFound is the sentinel label the detection prompt asks the model
// to use when no column qualifies
const noneFound = "NONE_FOUND"

// namePatterns are common name-column headers, in priority order
var namePatterns = []string{
	"fullname", "full_name", "full name", "name",
	"employee_name", "employeename", "person_name", "personname",
	"first_last_name", "complete_name",
}

// ColumnDetection describes which column holds person names and how the
// decision was reached
type ColumnDetection struct {
	Column       string   `json:"detected_column"`
	Confidence   float64  `json:"confidence_score"`
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// ColumnDetector finds the name column of a table. Detection runs in
// three stages: an explicit user choice wins outright, then LLM
// detection if a client is configured, then header/content heuristics.
// A stage that fails falls through to the next; only a missing manual
// column or the exhaustion of every stage is an error.
type ColumnDetector struct {
	// LLM used for model-assisted detection. Nil skips straight to the
	// heuristic stage.
	LLM openrouter.LanguageModelClient
	// Model passed to the LLM stage
	Model string
	// Threshold below which an LLM detection is distrusted. Zero means
	// DefaultColumnThreshold.
	Threshold float64
	// Logger for stage decisions. Nil gets a default.
	Logger *slog.Logger
}

// Detect resolves the name column of t. A non-empty manual column is
// validated against the header and used as-is.
func (d *ColumnDetector) Detect(ctx context.Context, t *Table, manual string) (ColumnDetection, error) {
	logger := d.Logger
	if logger == nil {
		logger = logging.New("columns")
	}

	if manual != "" {
		if _, ok := t.ColumnIndex(manual); !ok {
			return ColumnDetection{}, fmt.Errorf("column %q not found in input file", manual)
		}
		logger.Info("using manually specified column", "column", manual)
		return ColumnDetection{
			Column:     manual,
			Confidence: 1.0,
			Reasoning:  "manually specified by user",
		}, nil
	}

	if d.LLM != nil {
		detection, err := d.detectWithLLM(ctx, t)
		if err == nil {
			logger.Info("llm detected name column",
				"column", detection.Column, "confidence", detection.Confidence)
			return detection, nil
		}
		logger.Warn("llm column detection failed, falling back to heuristics", "error", err)
	}

	if column, ok := heuristicDetection(t); ok {
		logger.Info("heuristics detected name column", "column", column)
		return ColumnDetection{
			Column:     column,
			Confidence: 0.7,
			Reasoning:  "detected using header and content heuristics",
		}, nil
	}

	return ColumnDetection{}, fmt.Errorf("could not detect a name column, specify one with -c/--column")
}

func (d *ColumnDetector) detectWithLLM(ctx context.Context, t *Table) (ColumnDetection, error) {
	threshold := d.Threshold
	if threshold == 0 {
		threshold = DefaultColumnThreshold
	}

	prompt := buildDetectionPrompt(t)
	req := openrouter.ChatCompletionRequest{
		Model: d.Model,
		Messages: []openrouter.ChatMessage{
			{Role: openrouter.MessageRoleUser, Content: &prompt},
		},
		MaxTokens:      300,
		ResponseFormat: &openrouter.ResponseFormat{Type: "json_object"},
	}

	resp, err := d.LLM.ChatCompletion(ctx, req)
	if err != nil {
		return ColumnDetection{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return ColumnDetection{}, fmt.Errorf("model response contained no message content")
	}

	detection, err := llmjson.Parse[ColumnDetection]([]byte(*resp.Choices[0].Message.Content))
	if err != nil {
		return ColumnDetection{}, fmt.Errorf("failed to parse detection payload: %w", err)
	}

	if detection.Column == noneFound {
		return ColumnDetection{}, fmt.Errorf("model found no suitable name column")
	}
	if _, ok := t.ColumnIndex(detection.Column); !ok {
		return ColumnDetection{}, fmt.Errorf("model suggested non-existent column %q", detection.Column)
	}
	if detection.Confidence < threshold {
		return ColumnDetection{}, fmt.Errorf("model confidence %.2f below threshold %.2f",
			detection.Confidence, threshold)
	}

	return *detection, nil
}

// buildDetectionPrompt renders headers, sample values and basic stats
// into the detection instruction
func buildDetectionPrompt(t *Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert at analyzing CSV data structures. Your task is to identify which column contains FULL NAMES of people.\n\n")
	fmt.Fprintf(&b, "CSV has %d columns: %s\n\n", len(t.Header), strings.Join(t.Header, ", "))
	b.WriteString("Sample data from each column:\n")

	for i, header := range t.Header {
		samples := sampleValues(t, i)
		stats := columnStats(samples)
		sampleStr := "No data"
		if len(samples) > 0 {
			if len(samples) > 3 {
				samples = samples[:3]
			}
			sampleStr = strings.Join(samples, ", ")
		}
		fmt.Fprintf(&b, "%s: %s (avg length %.1f, space ratio %.2f)\n",
			header, sampleStr, stats.avgLength, stats.spaceRatio)
	}

	fmt.Fprintf(&b, `
Requirements:
- Look for columns containing FULL NAMES (first + last names, or full names)
- Prefer columns with multiple words separated by spaces
- Avoid columns with IDs, codes, email addresses, or single words
- Consider column names that suggest names (e.g., "name", "fullname", "employee_name")
- If multiple candidates exist, choose the most complete/comprehensive one
- If no suitable column exists, set detected_column to %q

Respond with a JSON object of the form
{"detected_column": "<header>", "confidence_score": <0.0-1.0>, "reasoning": "<one short sentence>", "alternatives": ["<other candidate headers>"]}.`,
		noneFound)

	return b.String()
}

type valueStats struct {
	avgLength  float64
	spaceRatio float64
}

// sampleValues returns up to columnSampleSize non-empty values from a column
func sampleValues(t *Table, col int) []string {
	var samples []string
	for _, row := range t.Rows {
		if len(samples) == columnSampleSize {
			break
		}
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			samples = append(samples, row[col])
		}
	}
	return samples
}

func columnStats(samples []string) valueStats {
	if len(samples) == 0 {
		return valueStats{}
	}

	var totalLength, spaced int
	for _, v := range samples {
		totalLength += len(v)
		if strings.Contains(v, " ") && len(strings.Fields(v)) >= 2 {
			spaced++
		}
	}

	return valueStats{
		avgLength:  float64(totalLength) / float64(len(samples)),
		spaceRatio: float64(spaced) / float64(len(samples)),
	}
}

// heuristicDetection is the no-LLM fallback: well-known headers first,
// then any column whose sampled values are mostly multi-word
func heuristicDetection(t *Table) (string, bool) {
	for _, pattern := range namePatterns {
		for _, header := range t.Header {
			if strings.EqualFold(header, pattern) {
				return header, true
			}
		}
	}

	for _, header := range t.Header {
		lower := strings.ToLower(header)
		for _, pattern := range namePatterns {
			if strings.Contains(lower, pattern) {
				return header, true
			}
		}
	}

	for i, header := range t.Header {
		if columnStats(sampleValues(t, i)).spaceRatio > 0.6 {
			return header, true
		}
	}

	return "", false
}
