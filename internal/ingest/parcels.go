package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// ParcelColumns lists, per logical field, the accepted header names in
// priority order. The first one present in the sheet is used.
var ParcelColumns = struct {
	X, Y, ID, Province, Variety, Year, Area, YieldTotal, YieldPerHa []string
}{
	X:          []string{"X", "x", "Longitude", "LON"},
	Y:          []string{"Y", "y", "Latitude", "LAT"},
	ID:         []string{"ID", "id", "Parcel_ID", "ParcelID"},
	Province:   []string{"Province", "province", "PROVINCE"},
	Variety:    []string{"variety", "Variety", "VARIETY", "Variety_planted"},
	Year:       []string{"Year", "year", "YEAR"},
	Area:       []string{"Area", "area", "AREA", "Area_ha"},
	YieldTotal: []string{"Yield", "yield", "YIELD", "Total_Yield"},
	YieldPerHa: []string{"yield (t/ha)", "Yield (t/ha)", "yield_t_ha", "Yield_t_ha", "yield_per_ha"},
}

const unknownLabel = "Unknown"

// parcelColumns is ParcelColumns resolved against one header.
type parcelColumns struct {
	x, y, id, province, variety, year, area, yieldTotal, yieldPerHa string
}

func resolveParcelColumns(t *table) parcelColumns {
	c := ParcelColumns
	return parcelColumns{
		x:          t.resolve(c.X),
		y:          t.resolve(c.Y),
		id:         t.resolve(c.ID),
		province:   t.resolve(c.Province),
		variety:    t.resolve(c.Variety),
		year:       t.resolve(c.Year),
		area:       t.resolve(c.Area),
		yieldTotal: t.resolve(c.YieldTotal),
		yieldPerHa: t.resolve(c.YieldPerHa),
	}
}

// LoadParcelSheet replaces all parcel points with the rows of the first sheet
// of the workbook at path. Rows whose coordinates cannot be resolved inside the
// transformer's bounds, or that lack a year, are skipped.
func LoadParcelSheet(ctx context.Context, d *gorm.DB, path string, tr *geo.Transformer) (*Report, error) {
	rep := newReport("parcels", path)

	if _, err := os.Stat(path); err != nil {
		return rep, fmt.Errorf("parcel workbook: %w", err)
	}
	f, err := openWorkbook(path)
	if err != nil {
		return rep, err
	}
	defer f.Close()

	t, err := sheetTable(f, "")
	if err != nil {
		return rep, err
	}
	cols := resolveParcelColumns(t)
	if cols.x == "" || cols.y == "" {
		return rep, fmt.Errorf("%w: no coordinate columns among %v / %v", ErrMissingColumn, ParcelColumns.X, ParcelColumns.Y)
	}
	log.Printf("[parcels] %s: %d rows, x=%q y=%q, bounds %+v", path, len(t.rows), cols.x, cols.y, tr.Bounds())

	var points []yieldgap.ParcelPoint
	seen := map[string]struct{}{}
	for i, row := range t.rows {
		id := t.get(row, cols.id)
		if id == "" {
			id = fmt.Sprintf("Parcel_%d", i)
		}

		p, err := parcelFromRow(t, row, cols, tr)
		if err != nil {
			rep.skipped(id, "%v", err)
			log.Printf("[parcels] row %d (%s) skipped: %v", i+2, id, err)
			continue
		}
		p.ParcelID = id

		key := fmt.Sprintf("%s/%d", p.ParcelID, p.Year)
		if _, dup := seen[key]; dup {
			rep.skipped(key, "duplicate parcel and year")
			continue
		}
		seen[key] = struct{}{}
		points = append(points, p)
	}

	if err := replaceParcels(ctx, d, points, rep); err != nil {
		return rep, err
	}
	return rep.finish(), nil
}

func parcelFromRow(t *table, row []string, cols parcelColumns, tr *geo.Transformer) (yieldgap.ParcelPoint, error) {
	x, okX := parseFloat(t.get(row, cols.x))
	y, okY := parseFloat(t.get(row, cols.y))
	if !okX || !okY {
		return yieldgap.ParcelPoint{}, fmt.Errorf("missing coordinates")
	}

	pt, err := tr.Transform(x, y)
	if err != nil {
		return yieldgap.ParcelPoint{}, err
	}

	year, ok := parseYear(t.get(row, cols.year))
	if !ok {
		return yieldgap.ParcelPoint{}, fmt.Errorf("missing year")
	}

	province := t.get(row, cols.province)
	if province == "" {
		province = unknownLabel
	}
	variety := t.get(row, cols.variety)
	if variety == "" {
		variety = unknownLabel
	}

	return yieldgap.ParcelPoint{
		Province:   province,
		Variety:    variety,
		Year:       year,
		Area:       parseFloatPtr(t.get(row, cols.area)),
		YieldTotal: parseFloatPtr(t.get(row, cols.yieldTotal)),
		YieldPerHa: parseFloatPtr(t.get(row, cols.yieldPerHa)),
		X:          pt.Lon,
		Y:          pt.Lat,
	}, nil
}

// replaceParcels truncates parcel points and inserts points in one transaction,
// registering every named variety it meets.
func replaceParcels(ctx context.Context, d *gorm.DB, points []yieldgap.ParcelPoint, rep *Report) error {
	return d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&yieldgap.ParcelPoint{}).Error; err != nil {
			return fmt.Errorf("clear parcel points: %w", err)
		}

		if err := ensureVarieties(tx, points); err != nil {
			return err
		}

		if len(points) > 0 {
			if err := tx.CreateInBatches(&points, 500).Error; err != nil {
				return fmt.Errorf("insert parcel points: %w", err)
			}
		}
		for _, p := range points {
			rep.created(fmt.Sprintf("%s/%d", p.ParcelID, p.Year))
		}
		return nil
	})
}

func ensureVarieties(tx *gorm.DB, points []yieldgap.ParcelPoint) error {
	names := map[string]struct{}{}
	for _, p := range points {
		if p.Variety != "" && p.Variety != unknownLabel {
			names[p.Variety] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, n := range sorted {
		v := yieldgap.Variety{Name: n}
		if err := tx.Where(yieldgap.Variety{Name: n}).FirstOrCreate(&v).Error; err != nil {
			return fmt.Errorf("get variety %q: %w", n, err)
		}
	}
	return nil
}
