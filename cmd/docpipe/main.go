package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/belegwerk/docpipe/internal/common"
	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/export"
	"github.com/belegwerk/docpipe/internal/extract"
	"github.com/belegwerk/docpipe/internal/learn"
	"github.com/belegwerk/docpipe/internal/match"
	"github.com/belegwerk/docpipe/internal/pipeline"
	"github.com/belegwerk/docpipe/internal/validate"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in      = flag.String("in", "", "recognized-text file or directory of .txt files to process (required)")
		vendors = flag.String("vendors", "", "JSON file with the known-party directory (optional)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults next to the input)")
		obsIn   = flag.String("import-observations", "", "JSON observation dump to import before processing")
		obsOut  = flag.String("export-observations", "", "write the observation store to this JSON file after processing")
		autofix = flag.Bool("autofix", false, "apply auto-fixable suggestions before reporting")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: -in is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*in), "invoices.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	directory, err := loadDirectory(*vendors)
	if err != nil {
		logger.Error("failed to load vendor directory", "error", err)
		os.Exit(1)
	}

	store, cleanup, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open observation store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if *obsIn != "" {
		data, err := os.ReadFile(*obsIn)
		if err != nil {
			logger.Error("failed to read observation dump", "error", err)
			os.Exit(1)
		}
		n, err := learn.ImportObservations(ctx, store, data)
		if err != nil {
			logger.Error("failed to import observations", "error", err)
			os.Exit(1)
		}
		logger.Info("observations imported", "count", n)
	}

	learner, err := learn.NewEngine(ctx, logger, learn.Config{
		MinObservations:  cfg.Learn.MinObservations,
		RetrainEvery:     cfg.Learn.RetrainEvery,
		FrequencyWeight:  cfg.Learn.FrequencyWeight,
		ClassifierWeight: cfg.Learn.ClassifierWeight,
		NeighborWeight:   cfg.Learn.NeighborWeight,
	}, store)
	if err != nil {
		logger.Error("failed to build correction engine", "error", err)
		os.Exit(1)
	}

	p := pipeline.NewPipeline(logger,
		pipeline.Config{MinConfidence: cfg.Pipeline.MinConfidence, AutoFix: *autofix},
		extract.NewExtractor(logger, extract.Config{
			DefaultVATRate:     cfg.Pipeline.DefaultVATRate,
			DefaultLineTaxRate: cfg.Pipeline.DefaultLineTaxRate,
		}),
		validate.NewEngine(logger, validate.Config{
			HighAmountFlag: cfg.Pipeline.HighAmountFlag,
			Enrich:         true,
		}),
		match.NewEngine(logger, match.Config{}),
		learner,
	)

	files, err := collectInputs(*in)
	if err != nil {
		logger.Error("failed to collect inputs", "error", err)
		os.Exit(1)
	}
	logger.Info("starting batch", "files", len(files), "vendors", len(directory))

	var results []*pipeline.Result
	var vctx validate.Context
	failures := 0
	review := 0
	for _, path := range files {
		text, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read input", "path", path, "error", err)
			failures++
			continue
		}
		res, err := p.Run(ctx, string(text), directory, vctx)
		if err != nil {
			logger.Error("failed to process document", "path", path, "error", err)
			failures++
			continue
		}
		// each processed invoice joins the duplicate-check window
		vctx.ExistingInvoices = append(vctx.ExistingInvoices, validate.ExistingInvoice{
			ID:            path,
			InvoiceNumber: res.Invoice.InvoiceNumber,
		})
		if res.NeedsReview {
			review++
		}
		results = append(results, res)
	}

	xlsxBytes, err := export.NewService(logger).ExportResultsXLSX(results)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	if *obsOut != "" {
		f, err := os.Create(*obsOut)
		if err != nil {
			logger.Error("failed to create observation dump", "error", err)
			os.Exit(1)
		}
		if err := learn.ExportObservations(ctx, store, f); err != nil {
			f.Close()
			logger.Error("failed to export observations", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	logger.Info("batch complete",
		"documents", len(results),
		"needs_review", review,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Processing complete!\n")
	fmt.Printf("- Documents processed: %d\n", len(results))
	fmt.Printf("- Needing review: %d\n", review)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

func loadDirectory(path string) ([]entity.Party, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapError(err, "read vendor directory")
	}
	var parties []entity.Party
	if err := json.Unmarshal(data, &parties); err != nil {
		return nil, common.WrapError(err, "decode vendor directory")
	}
	return parties, nil
}

func collectInputs(in string) ([]string, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{in}, nil
	}
	entries, err := os.ReadDir(in)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		files = append(files, filepath.Join(in, e.Name()))
	}
	return files, nil
}

// openStore picks postgres when a DSN is configured, a sqlite file when a
// path is configured, and an in-memory store otherwise.
func openStore(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (learn.ObservationStore, func(), error) {
	switch {
	case cfg.PostgresDSN != "":
		s, err := learn.OpenPostgresStore(ctx, learn.PostgresConfig{
			DSN:         cfg.PostgresDSN,
			MaxConns:    cfg.MaxConns,
			MinConns:    cfg.MinConns,
			DialTimeout: cfg.DialTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case cfg.SQLitePath != "":
		s, err := learn.OpenSQLiteStore(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return learn.NewMemoryStore(), func() {}, nil
	}
}
