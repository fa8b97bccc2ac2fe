// Package importer loads practice items into the bank from spreadsheet
// files. Rows are validated independently; a bad row is collected as an
// error and never aborts the rest of the file.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// Sink receives validated items. engine stores satisfy it.
type Sink interface {
	InsertItem(ctx context.Context, item catalog.Item) error
}

// Config describes the expected sheet layout. Columns hold, in order:
// item id, topic id, stem, options (pipe separated), correct answer,
// rationale, difficulty.
type Config struct {
	FilePath  string
	SheetName string
	StartRow  int // 1-based; default 2 skips the header
}

// Result summarizes one import run.
type Result struct {
	TotalRows int
	Imported  int
	Skipped   int
	Errors    []string
}

const (
	colID = iota
	colTopicID
	colStem
	colOptions
	colCorrect
	colRationale
	colDifficulty
	columnCount
)

// Importer reads item rows and feeds them to the sink.
type Importer struct {
	catalog *catalog.Catalog
	sink    Sink
}

// New creates an importer validating topic references against the
// catalog.
func New(c *catalog.Catalog, sink Sink) *Importer {
	return &Importer{catalog: c, sink: sink}
}

// Run imports the configured sheet. The returned Result collects per-row
// errors; the error return covers only file-level failures.
func (imp *Importer) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.StartRow == 0 {
		cfg.StartRow = 2
	}

	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", cfg.SheetName, err)
	}

	result := &Result{}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalRows++

		item, err := imp.parseRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if err := imp.sink.InsertItem(ctx, item); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: store: %v", rowNum, err))
			continue
		}
		result.Imported++
	}

	slog.Info("item import finished",
		"file", cfg.FilePath,
		"rows", result.TotalRows,
		"imported", result.Imported,
		"skipped", result.Skipped)
	return result, nil
}

func (imp *Importer) parseRow(row []string) (catalog.Item, error) {
	item := catalog.Item{
		ID:            cell(row, colID),
		TopicID:       cell(row, colTopicID),
		Stem:          cell(row, colStem),
		CorrectAnswer: cell(row, colCorrect),
		Rationale:     cell(row, colRationale),
		Difficulty:    cell(row, colDifficulty),
		Source:        "bank",
	}

	if item.ID == "" {
		return catalog.Item{}, fmt.Errorf("item id is empty")
	}
	if item.Stem == "" {
		return catalog.Item{}, fmt.Errorf("stem is empty")
	}
	if item.CorrectAnswer == "" {
		return catalog.Item{}, fmt.Errorf("correct answer is empty")
	}
	if _, ok := imp.catalog.Get(item.TopicID); !ok {
		return catalog.Item{}, fmt.Errorf("unknown topic %q", item.TopicID)
	}

	for _, opt := range strings.Split(cell(row, colOptions), "|") {
		if opt = strings.TrimSpace(opt); opt != "" {
			item.Options = append(item.Options, norm.NFC.String(opt))
		}
	}
	if len(item.Options) < 2 {
		return catalog.Item{}, fmt.Errorf("need at least 2 options, got %d", len(item.Options))
	}
	if item.Difficulty == "" {
		item.Difficulty = "Medium"
	}
	return item, nil
}

// cell returns the trimmed, NFC-normalized value at index, empty when the
// row is short.
func cell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(row[index]))
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
