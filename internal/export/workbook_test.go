package export

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

func TestSheetName(t *testing.T) {
	cases := []struct {
		file string
		want string
	}{
		{"invoice.jpg", "invoice"},
		{"scan_2024-01.png", "scan_2024-01"},
		{"a:b/c?d*e[f]g.jpg", "a_b_c_d_e_f_g"},
		{"'quoted'.png", "quoted"},
		{".jpg", "Sheet"},
		{"", "Sheet"},
	}

	for _, tc := range cases {
		if got := SheetName(tc.file); got != tc.want {
			t.Errorf("SheetName(%q) = %q, expected %q", tc.file, got, tc.want)
		}
	}
}

func TestSheetName_TruncatesToLimit(t *testing.T) {
	got := SheetName(strings.Repeat("a", 40) + ".png")
	if got != strings.Repeat("a", 31) {
		t.Errorf("expected 31 characters, got %q", got)
	}

	// Rune-based truncation, not bytes.
	got = SheetName(strings.Repeat("页", 40) + ".png")
	if utf8.RuneCountInString(got) != 31 {
		t.Errorf("expected 31 runes, got %d in %q", utf8.RuneCountInString(got), got)
	}
}

func TestWriteWorkbook_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.xlsx")
	sheets := []Sheet{
		{Name: "invoice", Rows: [][]string{{"Posten", "Betrag"}, {"Miete", "1.200,00"}}},
		{Name: "receipt", Rows: [][]string{{"Summe", "42,00"}}},
	}

	if err := WriteWorkbook(path, sheets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"invoice", "receipt"}) {
		t.Fatalf("expected sheets [invoice receipt], got %v", got)
	}

	checks := []struct {
		sheet, cell, want string
	}{
		{"invoice", "A1", "Posten"},
		{"invoice", "B1", "Betrag"},
		{"invoice", "A2", "Miete"},
		{"invoice", "B2", "1.200,00"},
		{"receipt", "A1", "Summe"},
		{"receipt", "B1", "42,00"},
	}
	for _, c := range checks {
		got, err := f.GetCellValue(c.sheet, c.cell)
		if err != nil {
			t.Fatalf("read %s!%s: %v", c.sheet, c.cell, err)
		}
		if got != c.want {
			t.Errorf("%s!%s: expected %q, got %q", c.sheet, c.cell, c.want, got)
		}
	}
}

func TestWriteWorkbook_DeduplicatesSheetNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.xlsx")
	sheets := []Sheet{
		{Name: "scan", Rows: [][]string{{"first"}}},
		{Name: "scan", Rows: [][]string{{"second"}}},
		{Name: "scan", Rows: [][]string{{"third"}}},
	}

	if err := WriteWorkbook(path, sheets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	want := []string{"scan", "scan (2)", "scan (3)"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected sheets %v, got %v", want, got)
	}
}

func TestWriteWorkbook_RequiresSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.xlsx")
	if err := WriteWorkbook(path, nil); err == nil {
		t.Fatal("expected an error for an empty workbook")
	}
}

func TestWriteWorkbook_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.xlsx")
	if err := WriteWorkbook(path, []Sheet{{Name: "scan", Rows: [][]string{{"x"}}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "tables.xlsx" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected only tables.xlsx in the output dir, got %v", names)
	}
}
