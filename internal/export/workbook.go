package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Excel limits sheet names to 31 characters and forbids a handful of
// punctuation characters.
const maxSheetNameLen = 31

const (
	minColWidth = 10
	maxColWidth = 80
)

// Sheet is one recognized table destined for its own worksheet.
type Sheet struct {
	// Name is the worksheet name, usually derived from the image file via
	// SheetName.
	Name string

	// Rows holds the table cells, row by row.
	Rows [][]string
}

// SheetName derives a legal worksheet name from an image file name: the
// extension dropped, forbidden characters replaced, and the result
// truncated to Excel's 31-character limit.
func SheetName(fileName string) string {
	name := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "' ")
	if name == "" {
		name = "Sheet"
	}
	if utf8.RuneCountInString(name) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	return name
}

// WriteWorkbook writes one worksheet per sheet to an .xlsx file at path,
// in the given order. Colliding sheet names are suffixed to stay unique.
// The first row of every sheet is frozen and column widths follow the
// widest cell. The file lands atomically via a temp file in the target
// directory.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(sheets))
	for i, sheet := range sheets {
		name := uniqueSheetName(sheet.Name, used)
		used[name] = true

		if i == 0 {
			// Rename the default sheet instead of leaving it empty.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("name sheet %q: %w", name, err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("create sheet %q: %w", name, err)
			}
		}

		if err := fillSheet(f, name, sheet.Rows); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pdf2word-*.xlsx")
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, name string, rows [][]string) error {
	widest := make(map[int]int)

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("sheet %q cell (%d,%d): %w", name, r+1, c+1, err)
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return fmt.Errorf("sheet %q cell %s: %w", name, cell, err)
			}
			if n := utf8.RuneCountInString(value); n > widest[c] {
				widest[c] = n
			}
		}
	}

	for c, width := range widest {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return fmt.Errorf("sheet %q column %d: %w", name, c+1, err)
		}
		w := float64(width + 2)
		if w < minColWidth {
			w = minColWidth
		}
		if w > maxColWidth {
			w = maxColWidth
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return fmt.Errorf("sheet %q column %s: %w", name, col, err)
		}
	}

	if len(rows) > 0 {
		if err := f.SetPanes(name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("sheet %q freeze header: %w", name, err)
		}
	}
	return nil
}

// uniqueSheetName suffixes name until it is unused, keeping the result
// within the sheet-name length limit.
func uniqueSheetName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	runes := []rune(name)
	for i := 2; ; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		trimmed := runes
		if over := len(runes) + len(suffix) - maxSheetNameLen; over > 0 {
			trimmed = runes[:len(runes)-over]
		}
		candidate := string(trimmed) + suffix
		if !used[candidate] {
			return candidate
		}
	}
}
