package importer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/adaptlearn/practice-engine/internal/catalog"
	"github.com/adaptlearn/practice-engine/internal/engine"
)

func writeSheet(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "items.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func testImporter(t *testing.T) (*Importer, *engine.MemoryStore) {
	t.Helper()
	c, err := catalog.FromTopics([]catalog.Topic{
		{ID: "fractions", Name: "Fractions", Category: "math", Params: catalog.Params{Init: 0.3, Transit: 0.1, Guess: 0.2, Slip: 0.1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store := engine.NewMemoryStore()
	return New(c, store), store
}

func TestImporter_Run(t *testing.T) {
	imp, store := testImporter(t)
	path := writeSheet(t, [][]interface{}{
		{"id", "topic", "stem", "options", "correct", "rationale", "difficulty"},
		{"frac-1", "fractions", "1/2 + 1/4 = ?", "A. 3/4|B. 1/2", "A", "common denominator", "Easy"},
		{"frac-2", "fractions", "2/3 of 9?", "A. 6|B. 3|C. 2", "A", "", ""},
	})

	result, err := imp.Run(context.Background(), Config{FilePath: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.TotalRows != 2 || result.Imported != 2 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want 2 imported", result)
	}

	item, err := store.GetItem(context.Background(), "frac-1")
	if err != nil || item == nil {
		t.Fatalf("GetItem() = %v, %v", item, err)
	}
	if item.TopicID != "fractions" || len(item.Options) != 2 || item.Source != "bank" {
		t.Errorf("imported item = %+v", item)
	}

	// Missing difficulty falls back to Medium.
	item2, _ := store.GetItem(context.Background(), "frac-2")
	if item2 == nil || item2.Difficulty != "Medium" {
		t.Errorf("frac-2 = %+v, want Medium difficulty", item2)
	}
}

func TestImporter_CollectsRowErrors(t *testing.T) {
	imp, store := testImporter(t)
	path := writeSheet(t, [][]interface{}{
		{"id", "topic", "stem", "options", "correct"},
		{"bad-1", "calculus", "unknown topic", "A. 1|B. 2", "A"},
		{"", "fractions", "missing id", "A. 1|B. 2", "A"},
		{"bad-3", "fractions", "one option", "A. 1", "A"},
		{"ok-1", "fractions", "valid", "A. 1|B. 2", "A"},
	})

	result, err := imp.Run(context.Background(), Config{FilePath: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.TotalRows != 4 || result.Imported != 1 || result.Skipped != 3 {
		t.Fatalf("result = %+v, want 1 imported, 3 skipped", result)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("errors = %v, want 3", result.Errors)
	}
	for i, substr := range []string{"unknown topic", "id is empty", "at least 2 options"} {
		if !strings.Contains(result.Errors[i], substr) {
			t.Errorf("error %d = %q, want substring %q", i, result.Errors[i], substr)
		}
	}

	if item, _ := store.GetItem(context.Background(), "ok-1"); item == nil {
		t.Error("valid row was not imported")
	}
}

func TestImporter_NormalizesText(t *testing.T) {
	imp, store := testImporter(t)
	// "é" written as "e" + combining acute; NFC should compose it.
	decomposed := "caf" + string([]rune{'e', 0x0301})
	path := writeSheet(t, [][]interface{}{
		{"id", "topic", "stem", "options", "correct"},
		{"nfc-1", "fractions", decomposed, "A. 1|B. 2", "A"},
	})

	if _, err := imp.Run(context.Background(), Config{FilePath: path}); err != nil {
		t.Fatal(err)
	}
	item, _ := store.GetItem(context.Background(), "nfc-1")
	if item == nil {
		t.Fatal("item not imported")
	}
	if item.Stem != "café" {
		t.Errorf("stem = %q, want composed form", item.Stem)
	}
}

func TestImporter_MissingFile(t *testing.T) {
	imp, _ := testImporter(t)
	if _, err := imp.Run(context.Background(), Config{FilePath: "does-not-exist.xlsx"}); err == nil {
		t.Fatal("Run() should fail on a missing file")
	}
}
