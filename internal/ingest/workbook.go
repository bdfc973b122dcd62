package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// openWorkbook opens an .xlsx file; callers must Close it.
func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	return f, nil
}

func hasSheet(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// sheetTable reads a named sheet. An empty name selects the first sheet.
func sheetTable(f *excelize.File, name string) (*table, error) {
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingSheet)
		}
		name = sheets[0]
	} else if !hasSheet(f, name) {
		return nil, fmt.Errorf("%w: %s", ErrMissingSheet, name)
	}

	// Number formats only change how a cell is shown; loaders need the
	// stored value.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	return newTable(rows), nil
}
