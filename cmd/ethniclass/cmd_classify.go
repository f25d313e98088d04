package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
)

var classifyFlags struct {
	noLLM bool
}

var classifyCmd = &cobra.Command{
	Use:   "classify NAME...",
	Short: "Classify names given on the command line",
	Long: `Classify labels each argument and prints one JSON result per line,
in argument order. Useful for smoke tests and shell pipelines.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyFlags.noLLM, "no-llm", false, "Rule-based classification only, never call the model")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("ethniclass")

	rules, err := loadRules()
	if err != nil {
		return err
	}
	llm, _ := buildLLM(classifyFlags.noLLM, rules, logger)

	cls, err := classifier.New(classifier.Config{
		Rules: rules,
		LLM:   llm,
		Model: resolveModel(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, result := range cls.ClassifyBatch(ctx, args) {
		line, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(out, string(line))
	}
	return nil
}
