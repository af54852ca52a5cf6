package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"linguaporta/internal/app"
	"linguaporta/internal/config"
	"linguaporta/internal/logger"
	"linguaporta/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: answers_YYYYMMDD_HHMMSS.json)")
	exportConfig := exportCmd.String("config", "", "Path to config file")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importDryRun := importCmd.Bool("dry-run", false, "Only report what would be imported")
	importConfig := importCmd.String("config", "", "Path to config file")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var configPath string
	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		configPath = *exportConfig
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		configPath = *importConfig
	default:
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	answers, closeGrid, err := app.OpenAnswerService(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open answer store", zap.Error(err))
	}
	defer closeGrid()

	backupService := service.NewBackupService(answers, cfg.Store.Backend, log)

	switch os.Args[1] {
	case "export":
		err = handleExport(ctx, log, backupService, *exportOutput)
	case "import":
		err = handleImport(ctx, log, backupService, *importInput, *importDryRun)
	}
	if err != nil {
		closeGrid()
		log.Fatal("backup failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func handleExport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("answers_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	log.Info("exporting answers", zap.String("output", outputPath))
	if err := backupService.Export(ctx, outputPath); err != nil {
		return err
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("failed to stat output file: %w", err)
	}
	log.Info("export complete", zap.Int64("bytes", fileInfo.Size()))
	return nil
}

func handleImport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, inputPath string, dryRun bool) error {
	// Check if file exists
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	log.Info("importing answers", zap.String("input", inputPath), zap.Bool("dry_run", dryRun))
	summary, err := backupService.Import(ctx, inputPath, dryRun)
	if err != nil {
		return err
	}

	log.Info("import complete",
		zap.Int("rows", summary.Rows),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return nil
}

func printUsage() {
	fmt.Println("LINGUAPORTA Answer Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export every partition to a JSON file")
	fmt.Println("  backup import [options]    Import answers from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: answers_YYYYMMDD_HHMMSS.json)")
	fmt.Println("  -config <file>    Config file (default: $CONFIG_FILE or ./config/config.yaml)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -dry-run          Report row counts without writing")
	fmt.Println("  -config <file>    Config file (default: $CONFIG_FILE or ./config/config.yaml)")
	fmt.Println()
	fmt.Println("Imports never overwrite a filled row, so the same file can be replayed safely.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  STORE_BACKEND     sql, sheets or memory (default: sql)")
	fmt.Println("  DATABASE_TYPE     sqlite, postgres, pgx or mysql (default: sqlite)")
	fmt.Println("  DB_PATH           SQLite database path (default: ./linguaporta.db)")
	fmt.Println("  DATABASE_URL      PostgreSQL or MySQL connection URL")
	fmt.Println("  SPREADSHEET_ID    Spreadsheet for the sheets backend")
}
