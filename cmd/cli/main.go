package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leafscan/internal/application/analysis"
	"github.com/bryanwahyu/leafscan/internal/capture"
	"github.com/bryanwahyu/leafscan/internal/config"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/infra/ai/openai"
	"github.com/bryanwahyu/leafscan/internal/infra/inference"
	"github.com/bryanwahyu/leafscan/internal/logger"
	"github.com/bryanwahyu/leafscan/internal/render"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	configPath string
	crop       string
	endpoint   string
	jsonOutput bool
}

func main() {
	if newRootCmd(os.Stdout, os.Stderr).Execute() != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:          "leafscan",
		Short:        "Leaf disease detection from the terminal",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to the config file")

	analyze := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Classify one leaf image",
		Long: `Sends a leaf image to the classifier configured for the crop and prints
the result card.

Examples:
  leafscan analyze ./leaf.jpg
  leafscan analyze ./leaf.png --crop cashew --json
  leafscan analyze ./leaf.jpg --endpoint http://localhost:8000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), stdout, stderr, opts, args[0])
		},
	}
	analyze.Flags().StringVarP(&opts.crop, "crop", "c", "", "Crop of the leaf (default: first configured crop)")
	analyze.Flags().StringVar(&opts.endpoint, "endpoint", "", "Inference base URL, overrides the config")
	analyze.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output result as JSON")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "leafscan %s\n", version)
			fmt.Fprintf(stdout, "  commit: %s\n", commit)
			fmt.Fprintf(stdout, "  built:  %s\n", date)
		},
	}

	root.AddCommand(analyze, versionCmd)
	return root
}

type analyzeOutput struct {
	File   string                 `json:"file"`
	Crop   string                 `json:"crop"`
	Result *classification.Result `json:"result"`
}

func runAnalyze(ctx context.Context, stdout, stderr io.Writer, opts options, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	if opts.endpoint != "" {
		cfg.Classifier.Provider = config.ProviderInference
		cfg.Inference.BaseURL = opts.endpoint
	}

	img, err := readImage(path)
	if err != nil {
		return err
	}

	svc := &analysis.Service{
		Classifier: classifierFor(cfg),
		Logger:     logger.New(stderr, cfg.Log.Level, cfg.Log.Format),
		Crops:      cfg.Crops,
	}
	crop := opts.crop
	if crop == "" {
		crop = svc.DefaultCrop()
	}

	stop := startSpinner(stderr, fmt.Sprintf(" Analyzing %s leaf...", crop))
	start := time.Now()
	res, err := svc.Classify(ctx, crop, img)
	stop()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	_, _ = color.New(color.FgHiBlack).Fprintf(stderr, "Analysis complete (%.1fs)\n", time.Since(start).Seconds())

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analyzeOutput{File: filepath.Base(path), Crop: crop, Result: res})
	}
	render.Text(stdout, render.Card(res))
	return nil
}

// readImage loads a file and guesses its type from the extension, then the content.
func readImage(path string) (*classification.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	declared := mime.TypeByExtension(filepath.Ext(path))
	if declared == "" {
		declared = http.DetectContentType(data)
	}
	img, ok := capture.Accept(filepath.Base(path), declared, data)
	if !ok {
		return nil, fmt.Errorf("%s: %w (%s)", path, classification.ErrNotAnImage, capture.Formats)
	}
	return img, nil
}

func classifierFor(cfg *config.Config) classification.Classifier {
	if cfg.Classifier.Provider == config.ProviderOpenAI {
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	}
	return inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.Path)
}

// startSpinner shows progress only when stderr is a terminal.
func startSpinner(w io.Writer, suffix string) func() {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}
