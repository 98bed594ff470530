// Package export turns recognized table text into an Excel workbook and
// keeps the checkpoint file that lets an interrupted table run resume.
package export

import "strings"

// ParseTable splits recognized table text into rows and cells: one line
// per table row, cells separated by tabs, as the table prompt instructs
// the model to answer. Blank lines are dropped; a line without tabs still
// yields a one-cell row.
func ParseTable(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(strings.TrimRight(line, " \t\r"), "\t")
		for i, cell := range cells {
			cells[i] = strings.TrimSpace(cell)
		}
		rows = append(rows, cells)
	}
	return rows
}
