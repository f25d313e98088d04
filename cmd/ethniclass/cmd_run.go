package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	classifier "github.com/FrenchMajesty/ethnicity-classifier"
	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
	"github.com/FrenchMajesty/ethnicity-classifier/pipeline"
)

var runFlags struct {
	input     string
	output    string
	column    string
	batchSize int
	workers   int
	noLLM     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify every row of a CSV file",
	Long: `Run reads a CSV file, finds the column holding person names, labels
every row with a predicted ethnicity, confidence and method, and writes
the widened table back out. Progress is checkpointed after every batch,
so an interrupted run keeps the rows already classified.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.input, "input", "i", "", "Path to the input CSV file (required)")
	f.StringVarP(&runFlags.output, "output", "o", "", "Path to the output CSV file (required)")
	f.StringVarP(&runFlags.column, "column", "c", "", "Name column (default: auto-detect)")
	f.IntVar(&runFlags.batchSize, "batch-size", classifier.DefaultBatchSize, "Names per batch LLM request")
	f.IntVar(&runFlags.workers, "workers", pipeline.DefaultWorkers, "Concurrently classified batches")
	f.BoolVar(&runFlags.noLLM, "no-llm", false, "Rule-based classification only, never call the model")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("ethniclass")

	rules, err := loadRules()
	if err != nil {
		return err
	}
	llm, chatClient := buildLLM(runFlags.noLLM, rules, logger)

	cls, err := classifier.New(classifier.Config{
		Rules:     rules,
		LLM:       llm,
		Model:     resolveModel(),
		BatchSize: runFlags.batchSize,
	})
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Classifier: cls,
		Detector: &pipeline.ColumnDetector{
			LLM:   chatClient,
			Model: detectionModel(),
		},
		BatchSize: runFlags.batchSize,
		Workers:   runFlags.workers,
	})
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, runFlags.input, runFlags.output, runFlags.column)
	if err != nil {
		if summary != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Interrupted after %d batches, partial results in %s\n",
				summary.Batches, runFlags.output)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Classified %d rows from column %q into %s\n",
		summary.Rows, summary.Detection.Column, runFlags.output)
	for label, count := range summary.Distribution {
		fmt.Fprintf(out, "  %-10s %d\n", label, count)
	}
	return nil
}
