package ingest_test

import (
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/xuri/excelize/v2"
	"github.com/yieldgap-ma/yg-backend/internal/db/dbtest"
	"github.com/yieldgap-ma/yg-backend/internal/ingest"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

func migratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	d := dbtest.Open(t)
	if err := yieldgap.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

type sheet struct {
	name string
	rows [][]any
	// formats maps a cell reference such as "F2" to a built-in number
	// format id applied after the rows are written.
	formats map[string]int
}

// writeWorkbook saves sheets, in order, to an .xlsx file under t.TempDir().
func writeWorkbook(t *testing.T, sheets ...sheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("new sheet %s: %v", s.name, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("write %s row %d: %v", s.name, r+1, err)
			}
		}
		for cell, numFmt := range s.formats {
			style, err := f.NewStyle(&excelize.Style{NumFmt: numFmt})
			if err != nil {
				t.Fatalf("new style: %v", err)
			}
			if err := f.SetCellStyle(s.name, cell, cell, style); err != nil {
				t.Fatalf("style %s!%s: %v", s.name, cell, err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// fakeReader serves features from memory.
type fakeReader struct {
	features []ingest.Feature
	err      error
	pos      int
	closed   bool
}

func (r *fakeReader) Next() (ingest.Feature, bool) {
	if r.pos >= len(r.features) {
		return ingest.Feature{}, false
	}
	f := r.features[r.pos]
	f.Index = r.pos
	r.pos++
	return f, true
}

func (r *fakeReader) Err() error   { return r.err }
func (r *fakeReader) Close() error { r.closed = true; return nil }

func square(x0, y0, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x0 + size, Y: y0},
		{X: x0 + size, Y: y0 + size},
		{X: x0, Y: y0 + size},
		{X: x0, Y: y0},
	}}
}

func count(t *testing.T, d *gorm.DB, model any, where ...any) int64 {
	t.Helper()
	q := d.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
