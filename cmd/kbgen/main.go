// Package main provides the kbgen CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags
var Version = "dev"

// configPath is the pipeline configuration file, shared by all commands.
var configPath string

// verbose enables debug-level logging.
var verbose bool

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(exitStatus(err))
}

// exitError carries a process exit status out of a command handler.
// Handlers return it instead of calling os.Exit so deferred cleanup
// (cache close, log sync) runs before the process exits.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// failf wraps a formatted error with an exit status.
func failf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// exitStatus maps the error returned by Execute to the process exit code.
func exitStatus(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

var rootCmd = &cobra.Command{
	Use:   "kbgen",
	Short: "Citation-backed medical knowledgebase article generator",
	Long: `kbgen generates structured, citation-backed knowledgebase articles for
medical conditions.

Each condition in the catalog is walked through a staged pipeline:
  - outline generation via a generative model
  - optional refinement against a local document corpus
  - model-generated bibliographic search queries
  - paper retrieval from PubMed and Semantic Scholar
  - citation integration, deduplication, and renumbering

Articles are written atomically as JSON, one directory per condition.
Conditions that already have a valid article are skipped unless --force
is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pipeline.yml", "Pipeline configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

// buildLogger creates the run logger, teeing to stderr and run.log under
// the output directory.
func buildLogger(outputDir string) (*zap.Logger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr", filepath.Join(outputDir, "run.log")}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
