package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pagepatch/internal/catalog"
	"pagepatch/internal/config"
	"pagepatch/internal/inbox"
	"pagepatch/internal/storage"
	"pagepatch/pkg/pagepatch"
)

var (
	// Input/Output flags
	inputFile  = flag.String("input", "", "Input document path")
	outputFile = flag.String("output", "", "Output document path (default: stdout)")
	inputDir   = flag.String("input-dir", "", "Patch all HTML files in directory")
	outputDir  = flag.String("output-dir", "", "Output directory for batch processing")

	// Patch flags
	targetID        = flag.String("id", "", "Id of the element to replace")
	replacementFile = flag.String("replacement", "", "File holding the replacement markup")
	extract         = flag.Bool("extract", false, "Print the element with -id instead of replacing it")

	// Configuration flags
	configFile   = flag.String("config", "", "YAML configuration file")
	containerTag = flag.String("tag", "div", "Container element name")
	dialect      = flag.String("dialect", "html", "Markup dialect (html, xhtml)")
	allowBinary  = flag.Bool("allow-invalid-utf8", false, "Patch documents that are not valid UTF-8")

	// Catalog flags
	catalogPath = flag.String("catalog", "", "Catalog database (default: pagepatch.db)")
	register    = flag.String("register", "", "Register a document in the catalog")
	title       = flag.String("title", "", "Title for -register (default: file name)")
	docID       = flag.String("doc", "", "Catalog document id")
	list        = flag.Bool("list", false, "List catalog documents")
	history     = flag.Int("history", 0, "Show the last N edits of -doc (0: off)")
	pages       = flag.Bool("pages", false, "List the page ids of -doc")
	watch       = flag.String("watch", "", "Watch an inbox directory and apply dropped pages")

	// Output control flags
	verbose = flag.Bool("verbose", false, "Verbose output with processing statistics")
	quiet   = flag.Bool("quiet", false, "Suppress all output except errors")
	stats   = flag.Bool("stats", false, "Show processing statistics")

	// Validation flags
	validate = flag.Bool("validate", false, "Validate the replacement markup (no patching)")

	// Logging flags
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile  = flag.String("log-file", "", "Write logs to a daily rotated file instead of stderr")
	logJSON  = flag.Bool("log-json", false, "Log as JSON")

	// Performance flags
	benchmark = flag.Bool("benchmark", false, "Show processing time")
)

func main() {
	flag.Parse()

	if err := validateArgs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(*logLevel, *logFile, *logJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	cfg, err := buildConfig(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()

	// Route to appropriate processing mode
	switch {
	case *watch != "":
		err = runWatch(ctx, cfg)
	case *register != "", *list, *history > 0, *pages, *docID != "":
		err = runCatalog(ctx, cfg)
	case *validate:
		err = runValidation(pagepatch.New(cfg))
	case *inputDir != "":
		err = runBatchProcessing(pagepatch.New(cfg))
	case *inputFile != "":
		err = runSingleFile(pagepatch.New(cfg))
	default:
		err = runStdin(pagepatch.New(cfg))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		closeLog()
		os.Exit(1)
	}

	if *benchmark {
		fmt.Fprintf(os.Stderr, "Processing completed in %v\n", time.Since(startTime))
	}
}

// validateArgs validates command line arguments
func validateArgs() error {
	if *inputFile != "" && *inputDir != "" {
		return fmt.Errorf("cannot specify both -input and -input-dir")
	}

	if *inputDir != "" && *outputDir == "" {
		return fmt.Errorf("-output-dir required when using -input-dir")
	}

	if *quiet && *verbose {
		return fmt.Errorf("cannot specify both -quiet and -verbose")
	}

	if *extract && *replacementFile != "" {
		return fmt.Errorf("cannot specify both -extract and -replacement")
	}

	if *history < 0 {
		return fmt.Errorf("-history must not be negative")
	}

	if (*history > 0 || *pages) && *docID == "" {
		return fmt.Errorf("-doc required with -history and -pages")
	}

	catalogMode := *register != "" || *list || *history > 0 || *pages || *docID != ""
	needsTarget := *watch == "" && *register == "" && !*list && *history == 0 && !*pages
	if needsTarget && *targetID == "" {
		return fmt.Errorf("-id required")
	}
	if needsTarget && !*extract && *replacementFile == "" {
		return fmt.Errorf("-replacement or -extract required")
	}
	if catalogMode && *extract {
		return fmt.Errorf("-extract works on -input or stdin, not on catalog documents")
	}

	return nil
}

// buildConfig loads the configuration file, if any, and applies flags on top
func buildConfig(logger *slog.Logger) (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tag":
			cfg.ContainerTag = *containerTag
		case "dialect":
			cfg.Dialect = *dialect
		case "allow-invalid-utf8":
			cfg.RequireUTF8 = !*allowBinary
		case "catalog":
			cfg.CatalogPath = *catalogPath
		case "watch":
			cfg.InboxDir = *watch
		}
	})
	cfg.Logger = logger

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readReplacement() (string, error) {
	data, err := os.ReadFile(*replacementFile)
	if err != nil {
		return "", fmt.Errorf("failed to read replacement file %s: %w", *replacementFile, err)
	}
	return string(data), nil
}

// patchOrExtract runs the requested operation on one document
func patchOrExtract(p *pagepatch.Patcher, document, replacement string) (string, *pagepatch.PatchResult, error) {
	if *extract {
		element, ok := p.Extract(document, *targetID)
		if !ok {
			return "", nil, fmt.Errorf("no <%s> element with id %q", p.Config().ContainerTag, *targetID)
		}
		return element, nil, nil
	}

	result, err := p.Patch(document, *targetID, replacement)
	if err != nil {
		return "", nil, fmt.Errorf("failed to patch document: %w", err)
	}
	return result.Document, result, nil
}

// runSingleFile processes a single input file
func runSingleFile(p *pagepatch.Patcher) error {
	inputContent, err := os.ReadFile(*inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file %s: %w", *inputFile, err)
	}
	return runDocument(p, string(inputContent), *inputFile)
}

// runStdin processes a document from stdin and outputs to stdout
func runStdin(p *pagepatch.Patcher) error {
	inputContent, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read from stdin: %w", err)
	}
	return runDocument(p, string(inputContent), "<stdin>")
}

func runDocument(p *pagepatch.Patcher, document, name string) error {
	var replacement string
	if !*extract {
		var err error
		if replacement, err = readReplacement(); err != nil {
			return err
		}
	}

	output, result, err := patchOrExtract(p, document, replacement)
	if err != nil {
		return err
	}

	if err := writeOutput(output, *outputFile); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if result != nil {
		if !result.Found && !*quiet {
			fmt.Fprintf(os.Stderr, "Warning: %s: no <%s> element with id %q, document unchanged\n",
				name, p.Config().ContainerTag, *targetID)
		}
		if *stats || *verbose {
			showProcessingStats(result, name)
		}
	}
	return nil
}

// runBatchProcessing patches all HTML files in a directory
func runBatchProcessing(p *pagepatch.Patcher) error {
	htmlFiles, err := findHTMLFiles(*inputDir)
	if err != nil {
		return fmt.Errorf("failed to find HTML files: %w", err)
	}

	if len(htmlFiles) == 0 {
		return fmt.Errorf("no HTML files found in directory: %s", *inputDir)
	}

	var replacement string
	if !*extract {
		if replacement, err = readReplacement(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var totalStats pagepatch.ProcessingStats
	patched, missing := 0, 0

	for i, inputPath := range htmlFiles {
		if *verbose {
			fmt.Fprintf(os.Stderr, "Processing %d/%d: %s\n", i+1, len(htmlFiles), inputPath)
		}

		inputContent, err := os.ReadFile(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read %s: %v\n", inputPath, err)
			continue
		}

		output, result, err := patchOrExtract(p, string(inputContent), replacement)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to process %s: %v\n", inputPath, err)
			missing++
			continue
		}

		relPath, _ := filepath.Rel(*inputDir, inputPath)
		outputPath := filepath.Join(*outputDir, relPath)

		outputSubdir := filepath.Dir(outputPath)
		if err := os.MkdirAll(outputSubdir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create output directory %s: %v\n", outputSubdir, err)
			continue
		}

		if err := writeOutput(output, outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", outputPath, err)
			continue
		}

		if result == nil {
			continue
		}
		if result.Found {
			patched++
		} else {
			missing++
		}
		totalStats.DocumentBytes += result.Stats.DocumentBytes
		totalStats.ReplacedBytes += result.Stats.ReplacedBytes
		totalStats.ReplacementBytes += result.Stats.ReplacementBytes
		totalStats.ProcessingTimeMs += result.Stats.ProcessingTimeMs
	}

	if *stats || *verbose {
		fmt.Fprintf(os.Stderr, "\nBatch Processing Summary:\n")
		fmt.Fprintf(os.Stderr, "Files processed: %d\n", len(htmlFiles))
		fmt.Fprintf(os.Stderr, "Files patched: %d\n", patched)
		fmt.Fprintf(os.Stderr, "Files without target: %d\n", missing)
		fmt.Fprintf(os.Stderr, "Bytes scanned: %d\n", totalStats.DocumentBytes)
		fmt.Fprintf(os.Stderr, "Bytes replaced: %d\n", totalStats.ReplacedBytes)
		fmt.Fprintf(os.Stderr, "Total processing time: %dms\n", totalStats.ProcessingTimeMs)
	}

	return nil
}

// runValidation checks the replacement markup without patching anything
func runValidation(p *pagepatch.Patcher) error {
	replacement, err := readReplacement()
	if err != nil {
		return err
	}

	issues := p.ValidateReplacement(*targetID, replacement)

	if len(issues) == 0 {
		if !*quiet {
			fmt.Printf("✓ %s: replacement for %q is valid\n", *replacementFile, *targetID)
		}
		return nil
	}

	fmt.Printf("✗ %s: Found %d issues:\n", *replacementFile, len(issues))
	for _, issue := range issues {
		severity := strings.ToUpper(issue.Severity)
		element := issue.Element
		if element == "" {
			element = issue.Type
		}
		fmt.Printf("  [%s] %s: %s\n", severity, element, issue.Message)
	}

	if pagepatch.HasErrors(issues) {
		return fmt.Errorf("replacement is not valid")
	}
	return nil
}

// runCatalog handles the catalog operations
func runCatalog(ctx context.Context, cfg config.Config) error {
	cat, err := catalog.Open(cfg, &storage.Store{})
	if err != nil {
		return err
	}
	defer cat.Close()

	switch {
	case *register != "":
		doc, err := cat.Register(ctx, *register, *title)
		if err != nil {
			return err
		}
		fmt.Println(doc.ID)
		return nil

	case *list:
		docs, err := cat.List(ctx)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			fmt.Printf("%s\t%d\t%s\t%s\n", doc.ID, doc.Revision, doc.Title, doc.Path)
		}
		return nil

	case *history > 0:
		edits, err := cat.History(ctx, *docID, *history)
		if err != nil {
			return err
		}
		for _, e := range edits {
			status := "applied"
			if !e.Applied {
				status = "skipped"
			}
			fmt.Printf("%s\t%s\t%s\tr%d\t%s\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.ID, e.PageID, e.Revision, status, e.Reason)
		}
		return nil

	case *pages:
		ids, err := cat.Pages(ctx, *docID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	replacement, err := readReplacement()
	if err != nil {
		return err
	}

	edit, err := cat.ReplacePage(ctx, *docID, *targetID, replacement)
	if err != nil {
		return err
	}

	if !*quiet {
		fmt.Printf("%s: page %s replaced, revision %d\n", *docID, *targetID, edit.Revision)
	}
	if *stats || *verbose {
		fmt.Fprintf(os.Stderr, "  Bytes before: %d\n", edit.BytesBefore)
		fmt.Fprintf(os.Stderr, "  Bytes after: %d\n", edit.BytesAfter)
	}
	return nil
}

// runWatch applies pages dropped into the inbox until interrupted
func runWatch(ctx context.Context, cfg config.Config) error {
	cat, err := catalog.Open(cfg, &storage.Store{})
	if err != nil {
		return err
	}
	defer cat.Close()

	cancel := cat.Subscribe(catalog.ObserverFunc(func(doc catalog.Document, e catalog.Edit) {
		if !*quiet {
			fmt.Printf("%s\t%s\tr%d\n", doc.Title, e.PageID, e.Revision)
		}
	}))
	defer cancel()

	w := inbox.New(cfg, cat, cfg.Logger)
	err = w.Run(ctx)

	if *stats || *verbose {
		s := w.Stats()
		fmt.Fprintf(os.Stderr, "\nInbox Summary:\n")
		fmt.Fprintf(os.Stderr, "Events: %d\n", s.Events)
		fmt.Fprintf(os.Stderr, "Applied: %d\n", s.Applied)
		fmt.Fprintf(os.Stderr, "Rejected: %d\n", s.Rejected)
		fmt.Fprintf(os.Stderr, "Errors: %d\n", s.Errors)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// writeOutput writes content to a file or stdout
func writeOutput(content, filename string) error {
	if filename == "" {
		_, err := fmt.Print(content)
		return err
	}
	return (&storage.Store{}).Write(context.Background(), filename, content)
}

// findHTMLFiles finds all HTML files in a directory
func findHTMLFiles(dir string) ([]string, error) {
	var htmlFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".html" || ext == ".htm" {
				htmlFiles = append(htmlFiles, path)
			}
		}

		return nil
	})

	return htmlFiles, err
}

// showProcessingStats displays processing statistics
func showProcessingStats(result *pagepatch.PatchResult, filename string) {
	fmt.Fprintf(os.Stderr, "\nProcessing Statistics for %s:\n", filename)
	fmt.Fprintf(os.Stderr, "  Found: %t\n", result.Found)
	fmt.Fprintf(os.Stderr, "  Span: %s\n", result.Span)
	fmt.Fprintf(os.Stderr, "  Duplicate ids: %d\n", result.Duplicates)
	fmt.Fprintf(os.Stderr, "  Document bytes: %d\n", result.Stats.DocumentBytes)
	fmt.Fprintf(os.Stderr, "  Replaced bytes: %d\n", result.Stats.ReplacedBytes)
	fmt.Fprintf(os.Stderr, "  Replacement bytes: %d\n", result.Stats.ReplacementBytes)
	fmt.Fprintf(os.Stderr, "  Processing time: %dms\n", result.Stats.ProcessingTimeMs)
}
