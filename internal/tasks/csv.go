// Package tasks runs yield CSV imports in the background.
package tasks

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/yieldgap-ma/yg-backend/internal/db"
	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// DefaultCSVSource is stored when a row has no data_source.
const DefaultCSVSource = "CSV Import"

var requiredColumns = []string{"boundary_code", "boundary_name", "boundary_level", "crop_name", "year"}

// ProcessYieldCSV get-or-creates the boundary, crop and yield row of every CSV
// record. Existing rows are never modified. The import is all or nothing; the
// first malformed row aborts it. It returns the number of records processed.
func ProcessYieldCSV(ctx context.Context, d *gorm.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) < 1 {
		return 0, errors.New("csv has no header")
	}

	header := records[0]
	// Handle BOM on first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, k := range requiredColumns {
		if _, ok := col[k]; !ok {
			return 0, fmt.Errorf("missing required column: %s", k)
		}
	}

	processed := 0
	err = d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for rowIdx := 1; rowIdx < len(records); rowIdx++ {
			rec := records[rowIdx]
			get := func(name string) string {
				i, ok := col[name]
				if !ok || i >= len(rec) {
					return ""
				}
				return strings.TrimSpace(rec[i])
			}

			if err := importRow(tx, get); err != nil {
				return fmt.Errorf("row %d: %w", rowIdx+1, err)
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[tasks] %s: processed %d records", path, processed)
	return processed, nil
}

func importRow(tx *gorm.DB, get func(string) string) error {
	code := get("boundary_code")
	if code == "" {
		return errors.New("boundary_code is required")
	}
	cropName := get("crop_name")
	if cropName == "" {
		return errors.New("crop_name is required")
	}
	year, err := strconv.Atoi(get("year"))
	if err != nil {
		return fmt.Errorf("invalid year %q", get("year"))
	}

	boundary := yieldgap.AdministrativeBoundary{}
	attrs := yieldgap.AdministrativeBoundary{
		Name:         get("boundary_name"),
		Level:        get("boundary_level"),
		GeometryJSON: geometryText(get("geometry")),
	}
	if err := tx.Where(yieldgap.AdministrativeBoundary{Code: code}).Attrs(attrs).FirstOrCreate(&boundary).Error; err != nil {
		return fmt.Errorf("boundary %s: %w", code, err)
	}

	crop := yieldgap.Crop{}
	if err := tx.Where(yieldgap.Crop{Name: cropName}).FirstOrCreate(&crop).Error; err != nil {
		return fmt.Errorf("crop %s: %w", cropName, err)
	}

	values := yieldgap.YieldData{DataSource: get("data_source")}
	if values.DataSource == "" {
		values.DataSource = DefaultCSVSource
	}
	for name, dst := range map[string]**float64{
		"actual_yield":      &values.ActualYield,
		"potential_yield":   &values.PotentialYield,
		"yield_gap":         &values.YieldGap,
		"yield_gap_percent": &values.YieldGapPercent,
	} {
		v, err := optionalFloat(get(name))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
	}

	var existing yieldgap.YieldData
	err = tx.Where("boundary_id = ? AND crop_id = ? AND year = ?", boundary.ID, crop.ID, year).First(&existing).Error
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	values.BoundaryID, values.CropID, values.Year = boundary.ID, crop.ID, year
	// The savepoint keeps the import transaction usable when a concurrent
	// import wins the insert.
	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Omit("Boundary", "Crop").Create(&values).Error
	})
	if db.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &v, nil
}

// geometryText keeps a geometry cell only when it is a GeoJSON geometry.
func geometryText(s string) *string {
	if s == "" {
		return nil
	}
	var g geo.Geometry
	if err := json.Unmarshal([]byte(s), &g); err != nil || g.Type == "" || g.Coordinates == nil {
		log.Printf("[tasks] ignoring geometry that is not GeoJSON: %.40q", s)
		return nil
	}
	return &s
}
