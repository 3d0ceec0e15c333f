package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fyerfyer/neurocme/api/middleware"
	"github.com/fyerfyer/neurocme/config"
	"github.com/fyerfyer/neurocme/internal/app"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/internal/services"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

// analyzeFlags analyze 子命令参数
type analyzeFlags struct {
	pdf      string
	url      string
	text     string
	markdown string
	title    string

	specialty  string
	depth      string
	outputType string
	useLLM     bool
	maxTopics  int

	format string
	out    string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:          "neurocme",
		Short:        "Rank clinical topics in a document and export study material",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")

	flags := &analyzeFlags{}
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a PDF, web page, or text file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := middleware.ConfigureLogger(middleware.LogOptions{Level: logLevel})
			logger.SetOutput(cmd.ErrOrStderr())
			return runAnalyze(cmd.Context(), cfg, logger, flags, cmd.OutOrStdout())
		},
	}
	analyzeCmd.Flags().StringVar(&flags.pdf, "pdf", "", "PDF file to analyze")
	analyzeCmd.Flags().StringVar(&flags.url, "url", "", "web page to fetch and analyze")
	analyzeCmd.Flags().StringVar(&flags.text, "text", "", "plain text file to analyze")
	analyzeCmd.Flags().StringVar(&flags.markdown, "markdown", "", "markdown file to analyze")
	analyzeCmd.Flags().StringVar(&flags.title, "title", "", "document title for text and markdown input")
	analyzeCmd.Flags().StringVar(&flags.specialty, "specialty", "", "specialty focus: 'Neuro ICU', 'General ICU', ECMO")
	analyzeCmd.Flags().StringVar(&flags.depth, "depth", "", "desired depth: boards, fellowship, attending")
	analyzeCmd.Flags().StringVar(&flags.outputType, "output-type", "", "output type: outline, pearls, flashcards")
	analyzeCmd.Flags().BoolVar(&flags.useLLM, "use-llm", false, "enrich topics with the configured LLM")
	analyzeCmd.Flags().IntVar(&flags.maxTopics, "max-topics", 0, "maximum number of topics")
	analyzeCmd.Flags().StringVar(&flags.format, "format", "markdown", "export format: json, csv, markdown, anki")
	analyzeCmd.Flags().StringVarP(&flags.out, "out", "o", "", "write export to file instead of stdout")
	analyzeCmd.MarkFlagsMutuallyExclusive("pdf", "url", "text", "markdown")
	analyzeCmd.MarkFlagsOneRequired("pdf", "url", "text", "markdown")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "neurocme %s\n", version)
		},
	}

	rootCmd.AddCommand(analyzeCmd, versionCmd)
	return rootCmd
}

func runAnalyze(ctx context.Context, cfg *config.Config, logger *logrus.Logger, flags *analyzeFlags, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := outputs.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	comps, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	opts := models.AnalysisOptions{
		SpecialtyFocus: models.Specialty(flags.specialty),
		DesiredDepth:   flags.depth,
		OutputType:     flags.outputType,
		UseLLM:         flags.useLLM,
		MaxTopics:      flags.maxTopics,
	}

	analysis, err := analyzeSource(ctx, comps.Service, flags, opts)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"analysis_id": analysis.AnalysisID,
		"topics":      len(analysis.Topics),
	}).Info("Analysis finished")

	content, err := comps.Service.Export(ctx, analysis.AnalysisID, format)
	if err != nil {
		return err
	}

	if flags.out == "" {
		_, err = io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(flags.out, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", flags.out, err)
	}
	fmt.Fprintf(stdout, "wrote %d topics to %s\n", len(analysis.Topics), flags.out)
	return nil
}

func analyzeSource(ctx context.Context, svc *services.AnalysisService, flags *analyzeFlags,
	opts models.AnalysisOptions) (*models.Analysis, error) {
	switch {
	case flags.pdf != "":
		data, err := os.ReadFile(flags.pdf)
		if err != nil {
			return nil, err
		}
		return svc.AnalyzePDF(ctx, data, filepath.Base(flags.pdf), opts)
	case flags.url != "":
		return svc.AnalyzeURL(ctx, flags.url, opts)
	case flags.text != "":
		data, err := os.ReadFile(flags.text)
		if err != nil {
			return nil, err
		}
		return svc.AnalyzeText(ctx, titleOr(flags.title, flags.text), string(data), services.TextPlain, opts)
	case flags.markdown != "":
		data, err := os.ReadFile(flags.markdown)
		if err != nil {
			return nil, err
		}
		return svc.AnalyzeText(ctx, flags.title, string(data), services.TextMarkdown, opts)
	default:
		return nil, fmt.Errorf("%w: no input given", models.ErrUnsupportedSource)
	}
}

// titleOr 未指定标题时使用文件名
func titleOr(title, path string) string {
	if title != "" {
		return title
	}
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
