package main

import (
	"log/slog"
	"os"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/adapters"
	"github.com/FrenchMajesty/ethnicity-classifier/clients/openrouter"
)

// loadRules returns the rule table the command should classify with
func loadRules() (*classifier.RuleSet, error) {
	if rootFlags.rules == "" {
		return classifier.DefaultRuleSet(), nil
	}
	return classifier.LoadRuleSet(rootFlags.rules)
}

// resolveModel resolves the model from the flag or the environment.
// Empty means the adapter default.
func resolveModel() string {
	if rootFlags.model != "" {
		return rootFlags.model
	}
	return os.Getenv("OPENROUTER_MODEL")
}

// buildLLM wires the OpenRouter transport and the name-classification
// adapter over it. A missing API key downgrades to rule-only mode with
// a warning instead of aborting.
func buildLLM(noLLM bool, rules *classifier.RuleSet, logger *slog.Logger) (classifier.LLMClient, openrouter.LanguageModelClient) {
	if noLLM {
		return nil, nil
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		logger.Warn("OPENROUTER_API_KEY not set, running rule-based classification only")
		return nil, nil
	}

	client := openrouter.NewClient(apiKey)
	client.Referer = os.Getenv("HTTP_REFERER")
	client.Title = os.Getenv("SITE_NAME")
	client.DumpRequests = rootFlags.debugDump

	return adapters.NewNameClassifierWithClient(client, resolveModel(), rules.Labels), client
}

// detectionModel is the model used for name-column detection
func detectionModel() string {
	if model := resolveModel(); model != "" {
		return model
	}
	return adapters.DefaultModel
}
