// Package spreadsheet reads the first worksheet of an Excel workbook into a candidate table.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
)

var allowedExt = map[string]bool{".xlsx": true, ".xls": true}

// CheckFilename rejects names without an Excel extension.
func CheckFilename(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return fmt.Errorf("%q: only .xlsx and .xls files are accepted: %w", name, domain.ErrInvalidFileType)
	}
	return nil
}

// Read parses the first worksheet. The first non-blank row is the header;
// blank rows are skipped. Cells keep their raw stored value, so numbers are
// not reformatted with the workbook's display format.
func Read(r io.Reader) (*candidate.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var header []string
	var body [][]string
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if header == nil {
			header = headerOf(row)
			continue
		}
		body = append(body, row)
	}
	if header == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	tbl, err := candidate.New(header, body)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	return tbl, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// headerOf drops trailing blank header cells and names interior ones by position.
func headerOf(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	out := make([]string, end)
	for i := range end {
		out[i] = strings.TrimSpace(row[i])
		if out[i] == "" {
			out[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return out
}
