// Command importbank loads practice items from a spreadsheet into the
// item bank.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/engine"
	"github.com/adaptlearn/practice-engine/internal/importer"
	"github.com/adaptlearn/practice-engine/internal/platform/config"
	"github.com/adaptlearn/practice-engine/internal/platform/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var (
		file     = flag.String("file", "", "path to the .xlsx item bank")
		sheet    = flag.String("sheet", "Sheet1", "sheet name")
		startRow = flag.Int("start-row", 2, "first data row (1-based)")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: importbank -file items.xlsx [-sheet Sheet1] [-start-row 2]")
		os.Exit(2)
	}

	if err := run(context.Background(), *file, *sheet, *startRow); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, file, sheet string, startRow int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	db, err := database.New(ctx, cfg.Database.URL, 4, 1)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, err := engine.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}

	result, err := importer.New(cat, store).Run(ctx, importer.Config{
		FilePath:  file,
		SheetName: sheet,
		StartRow:  startRow,
	})
	if err != nil {
		return err
	}

	for _, rowErr := range result.Errors {
		slog.Warn("row rejected", "detail", rowErr)
	}
	fmt.Printf("imported %d of %d rows (%d skipped)\n", result.Imported, result.TotalRows, result.Skipped)
	return nil
}
