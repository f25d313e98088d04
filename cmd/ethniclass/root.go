// ethniclass classifies the likely ethnicity of person names, either
// one-off from the command line or in bulk over CSV files.
//
// Usage:
//
//	ethniclass classify "MOHAMAD SYED BIN CHE'GOOS" "Tan Ah Kow"
//	ethniclass run -i employees.csv -o classified.csv
//	ethniclass run -i in.csv -o out.csv -c full_name --workers 8 --no-llm
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FrenchMajesty/ethnicity-classifier/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	envFile   string
	logLevel  string
	logFormat string
	rules     string
	model     string
	debugDump bool
}

var rootCmd = &cobra.Command{
	Use:   "ethniclass",
	Short: "Infer the likely ethnicity of person names",
	Long: "Ethniclass labels person names with their likely ethnicity using\n" +
		"deterministic name-pattern rules first and an LLM fallback for the rest.",
	PersistentPreRunE: setup,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.envFile, "env-file", "", "Env file to load before reading configuration")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&rootFlags.rules, "rules", "", "YAML rule table replacing the built-in Malaysian defaults")
	pf.StringVar(&rootFlags.model, "model", "", "OpenRouter model (default $OPENROUTER_MODEL)")
	pf.BoolVar(&rootFlags.debugDump, "debug-dump", false, "Save raw model responses under debug_llm_requests/")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.Version = version
}

func setup(_ *cobra.Command, _ []string) error {
	if rootFlags.envFile != "" {
		if err := godotenv.Load(rootFlags.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", rootFlags.envFile, err)
		}
	} else {
		// A missing default .env is fine.
		_ = godotenv.Load()
	}

	logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat, os.Stderr)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
