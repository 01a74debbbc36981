package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/config"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/openai"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/files"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/httpserver"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/logging"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/middleware"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/report"
)

type analyzer interface {
	Analyze(ctx context.Context, artifacts []domain.ArtifactRecord) (*domain.AnalysisResult, error)
}

// newAnalyzer is replaced in tests.
var newAnalyzer = func(cfg *config.Config, log logrus.FieldLogger) analyzer {
	client := openai.NewClient(openai.Options{
		APIKey:         cfg.Reasoning.APIKey,
		BaseURL:        cfg.Reasoning.BaseURL,
		Model:          cfg.Reasoning.Model,
		MaxTokens:      cfg.Reasoning.MaxTokens,
		RequestTimeout: cfg.Reasoning.RequestTimeout,
		Log:            log,
	})
	return threatmodel.NewService(client,
		threatmodel.WithLogger(log),
		threatmodel.WithSecretRedaction(cfg.Analysis.RedactSecrets),
	)
}

type analyzeOptions struct {
	project    string
	format     string
	output     string
	configPath string
	redact     bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze --project NAME [flags] PATH...",
		Short: "Analyze files and directories",
		Long: `Analyze reads the given files (directories are walked, hidden entries and
binary files skipped) and prints a threat model.

Examples:
  threatmodel analyze --project shop ./src ./deploy/docker-compose.yml
  threatmodel analyze --project shop --format sarif --output shop.sarif .`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Project name (required)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format (json, sarif)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to the config file")
	cmd.Flags().BoolVar(&opts.redact, "redact-secrets", false, "Mask credentials before sending artifacts")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runAnalyze(ctx context.Context, opts analyzeOptions, paths []string, stdout, stderr io.Writer) error {
	format, err := middleware.ValidateFormat(opts.format)
	if err != nil {
		return err
	}
	project := middleware.SanitizeString(opts.project)
	if err := middleware.ValidateProjectName(project); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	log := logging.New(cfg.Logging)
	if opts.redact {
		cfg.Analysis.RedactSecrets = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	artifacts, err := files.Collect(paths, domain.Limits{
		MaxArtifactBytes: cfg.Analysis.MaxArtifactBytes,
		MaxArtifacts:     cfg.Analysis.MaxArtifacts,
	}, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Analyzing %d artifact(s) for %s...\n", len(artifacts), project)

	result, err := newAnalyzer(cfg, log).Analyze(ctx, artifacts)
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		return writeResult(w, format, project, application.SystemClock{}, result)
	}
	if opts.output == "" {
		return write(stdout)
	}
	return writeOutputFile(opts.output, write)
}

// writeOutputFile creates path and hands it to write. A failed close is
// reported when the write itself succeeded.
func writeOutputFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return write(f)
}

func writeResult(w io.Writer, format, project string, clock application.Clock, result *domain.AnalysisResult) error {
	if format == "sarif" {
		return report.WriteSARIF(w, project, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(httpserver.Envelope{
		ProjectName: project,
		GeneratedAt: clock.Now(),
		Result:      result,
	})
}
