package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf2emails/cmd/pdf2emails/ui"
	"github.com/spherical/pdf2emails/internal/config"
	"github.com/spherical/pdf2emails/internal/observability"
	"github.com/spherical/pdf2emails/pkg/extractor"
)

var (
	cfgFile         string
	pdfPath         string
	credentialsFile string
	bucketName      string
	outputPath      string
	ocrProvider     string
	filterName      string
	cacheDriver     string
	workers         int
	retries         int
	skipFailedPages bool
	verbose         bool
	noColor         bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf2emails",
	Short: "Extract email addresses from a PDF of scanned pages",
	Long: `pdf2emails renders every page of a scanned PDF, runs document text
detection on it and prints the sorted, deduplicated email addresses found.

Each page image is uploaded to a Google Cloud Storage bucket before it is
passed to the Vision API.`,
	Example: `  pdf2emails --pdf list.pdf --gcloud-json-cred key.json --bucket-name my-scans
  pdf2emails --pdf list.pdf --gcloud-json-cred key.json --bucket-name my-scans --workers 4 --retries 3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runExtract,
}

func init() {
	rootCmd.Flags().StringVar(&pdfPath, "pdf", "", "path to the pdf file")
	rootCmd.Flags().StringVar(&credentialsFile, "gcloud-json-cred", "", "path to a google cloud service account key in json format")
	rootCmd.Flags().StringVar(&bucketName, "bucket-name", "", "google storage bucket each page image is uploaded to before text detection")
	_ = rootCmd.MarkFlagRequired("pdf")

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "also write the emails to this file, one per line")
	rootCmd.Flags().StringVar(&ocrProvider, "ocr-provider", "", "ocr provider (vision or tesseract)")
	rootCmd.Flags().StringVar(&filterName, "filter", "", "candidate filter (first-annotation or dense-blocks)")
	rootCmd.Flags().StringVar(&cacheDriver, "cache", "", "ocr result cache (none, memory or redis)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "pages processed concurrently")
	rootCmd.Flags().IntVar(&retries, "retries", 0, "retries for transient upload and ocr failures")
	rootCmd.Flags().BoolVar(&skipFailedPages, "skip-failed-pages", false, "record failing pages and continue instead of aborting")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func runExtract(cmd *cobra.Command, args []string) error {
	ui.InitUI(noColor, verbose)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	if cfg.Resilient() {
		ui.Warning("Resilience enabled (retries=%d, skip failed pages=%t): results may not cover every page",
			cfg.Pipeline.Retry.MaxRetries, cfg.Pipeline.SkipFailedPages)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			ui.Warning("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := extractor.NewClientWithConfig(ctx, cfg, extractor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	ui.Info("Extracting emails from %s", pdfPath)
	startTime := time.Now()
	events, outcome, err := client.Process(ctx, pdfPath)
	if err != nil {
		return err
	}

	trackProgress(pdfPath, events)

	out := <-outcome
	if out.Err != nil {
		ui.Error("Extraction failed, no emails listed")
		return out.Err
	}
	result := out.Result

	if len(result.SkippedPages) > 0 {
		ui.Warning("Skipped %d of %d pages: %v", len(result.SkippedPages), result.PagesTotal, pageNumbers(result.SkippedPages))
	}
	ui.Success("Processed %d pages in %v", result.PagesProcessed, time.Since(startTime).Round(time.Millisecond))

	if err := WriteListing(cmd.OutOrStdout(), result.Emails); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}

	if outputPath != "" {
		if err := WriteEmailsFile(outputPath, result.Emails); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		ui.Success("Wrote %d emails to %s", result.Count(), outputPath)
	}

	return nil
}

// trackProgress renders the event stream until the run ends. A spinner runs
// while the document opens, then a bar counts finished pages.
func trackProgress(path string, events <-chan extractor.StreamEvent) {
	spin := ui.NewSpinner(fmt.Sprintf("Opening %s", path))
	spin.Start()
	spinning := true
	stopSpinner := func() {
		if spinning {
			spin.Stop()
			spinning = false
		}
	}

	var bar *ui.ProgressBar
	for event := range events {
		switch event.Type {
		case extractor.EventPageProcessing:
			stopSpinner()
			if bar == nil {
				bar = ui.NewProgressBar(int64(event.PageCount), "Extracting")
			}
			if ui.Verbose() {
				bar.Describe(fmt.Sprintf("Page %d/%d", event.PageNumber, event.PageCount))
			}

		case extractor.EventPageComplete, extractor.EventPageSkipped:
			if bar != nil {
				bar.Add(1)
			}

		case extractor.EventError:
			stopSpinner()
			if bar != nil {
				bar.Clear()
			}

		case extractor.EventComplete:
			stopSpinner()
			if bar != nil {
				bar.Finish()
			}
		}
	}
	stopSpinner()
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("gcloud-json-cred") {
		cfg.GCloud.CredentialsFile = credentialsFile
	}
	if flags.Changed("bucket-name") {
		cfg.GCloud.Bucket = bucketName
	}
	if flags.Changed("ocr-provider") {
		cfg.OCR.Provider = ocrProvider
	}
	if flags.Changed("filter") {
		cfg.OCR.Filter = filterName
	}
	if flags.Changed("cache") {
		cfg.Cache.Driver = cacheDriver
	}
	if flags.Changed("workers") {
		cfg.Pipeline.Workers = workers
	}
	if flags.Changed("retries") {
		cfg.Pipeline.Retry.MaxRetries = retries
	}
	if flags.Changed("skip-failed-pages") {
		cfg.Pipeline.SkipFailedPages = skipFailedPages
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
}

func pageNumbers(indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = idx + 1
	}
	return out
}
