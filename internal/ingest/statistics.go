package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
)

// Sheet names of the statistics workbook.
const (
	SheetYieldStatistics = "Yield_Statistics"
	SheetGapStatistics   = "Gap_Statistics"
)

// Data sources recorded on statistics rows.
const (
	SourceExcelImport  = "Excel Import"
	SourceParcelPoints = "Parcel Points"
)

var statColumns = struct {
	Variety, Province, Year, Scenario, GapType []string
	Count, Mean, Std, Min, Q25, Median, Q75, Max []string
}{
	Variety:  []string{"Variety", "variety"},
	Province: []string{"Province", "province"},
	Year:     []string{"Year", "year"},
	Scenario: []string{"Scenario", "scenario"},
	GapType:  []string{"Gap_Type", "Gap Type", "GapType", "gap_type"},
	Count:    []string{"Count", "count"},
	Mean:     []string{"Mean", "mean"},
	Std:      []string{"Std", "std", "SD"},
	Min:      []string{"Min", "min"},
	Q25:      []string{"25%", "Q25", "q25"},
	Median:   []string{"50%", "Median", "median"},
	Q75:      []string{"75%", "Q75", "q75"},
	Max:      []string{"Max", "max"},
}

// blank cells and "all"-style labels mean the statistic is not split on that field
func aggregateLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "overall", "average", "total":
		return true
	}
	return false
}

// statRow is one parsed statistics line before it is bound to store rows.
type statRow struct {
	variety  string
	province *string
	year     *int
	group    string
	dist     yieldgap.Distribution
}

func parseStatRows(t *table, groupAliases []string, rep *Report, sheet string) []statRow {
	c := statColumns
	cols := map[string]string{
		"variety":  t.resolve(c.Variety),
		"province": t.resolve(c.Province),
		"year":     t.resolve(c.Year),
		"group":    t.resolve(groupAliases),
		"count":    t.resolve(c.Count),
		"mean":     t.resolve(c.Mean),
		"std":      t.resolve(c.Std),
		"min":      t.resolve(c.Min),
		"q25":      t.resolve(c.Q25),
		"median":   t.resolve(c.Median),
		"q75":      t.resolve(c.Q75),
		"max":      t.resolve(c.Max),
	}

	var out []statRow
	seen := map[string]struct{}{}
	for i, row := range t.rows {
		key := fmt.Sprintf("%s row %d", sheet, i+2)
		get := func(name string) string { return t.get(row, cols[name]) }

		mean, ok := parseFloat(get("mean"))
		if !ok {
			rep.skipped(key, "missing mean")
			continue
		}

		sr := statRow{group: get("group")}
		if v := get("variety"); !aggregateLabel(v) {
			sr.variety = v
		}
		if p := get("province"); !aggregateLabel(p) {
			sr.province = &p
		}
		if y, ok := parseYear(get("year")); ok {
			sr.year = &y
		}

		dedup := statKey(sr)
		if _, dup := seen[dedup]; dup {
			rep.skipped(key, "duplicate statistics row")
			continue
		}
		seen[dedup] = struct{}{}

		count, _ := parseFloat(get("count"))
		sr.dist = yieldgap.Distribution{
			Count:  int(count),
			Mean:   mean,
			Std:    parseFloatPtr(get("std")),
			Min:    parseFloatPtr(get("min")),
			Q25:    parseFloatPtr(get("q25")),
			Median: parseFloatPtr(get("median")),
			Q75:    parseFloatPtr(get("q75")),
			Max:    parseFloatPtr(get("max")),
		}
		out = append(out, sr)
	}
	return out
}

// statKey identifies a statistics line by variety, province, year and group.
// Aggregate group labels all collapse to the same key.
func statKey(sr statRow) string {
	province, year, group := "", "", sr.group
	if sr.province != nil {
		province = *sr.province
	}
	if sr.year != nil {
		year = strconv.Itoa(*sr.year)
	}
	if aggregateLabel(group) {
		group = ""
	}
	return strings.Join([]string{sr.variety, province, year, group}, "\x00")
}

// LoadStatistics replaces the yield and gap statistics tables from the
// Yield_Statistics and Gap_Statistics sheets of the workbook at path. Either
// sheet may be absent, but not both. Rows naming a scenario or gap type
// outside the vocabulary are skipped.
func LoadStatistics(ctx context.Context, d *gorm.DB, path string) (*Report, error) {
	rep := newReport("statistics", path)

	if _, err := os.Stat(path); err != nil {
		return rep, fmt.Errorf("statistics workbook: %w", err)
	}
	f, err := openWorkbook(path)
	if err != nil {
		return rep, err
	}
	defer f.Close()

	var yieldRows, gapRows []statRow
	haveYield, haveGap := hasSheet(f, SheetYieldStatistics), hasSheet(f, SheetGapStatistics)
	if !haveYield && !haveGap {
		return rep, fmt.Errorf("%w: need %s or %s", ErrMissingSheet, SheetYieldStatistics, SheetGapStatistics)
	}
	if haveYield {
		t, err := sheetTable(f, SheetYieldStatistics)
		if err != nil {
			return rep, err
		}
		if t.resolve(statColumns.Mean) == "" {
			return rep, fmt.Errorf("%s: %w: Mean", SheetYieldStatistics, ErrMissingColumn)
		}
		yieldRows = parseStatRows(t, statColumns.Scenario, rep, SheetYieldStatistics)
	}
	if haveGap {
		t, err := sheetTable(f, SheetGapStatistics)
		if err != nil {
			return rep, err
		}
		if t.resolve(statColumns.Mean) == "" {
			return rep, fmt.Errorf("%s: %w: Mean", SheetGapStatistics, ErrMissingColumn)
		}
		gapRows = parseStatRows(t, statColumns.GapType, rep, SheetGapStatistics)
	}

	err = d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		varieties := varietyCache{tx: tx, ids: map[string]uint{}}

		if haveYield {
			scenarios, err := nameIndex[yieldgap.Scenario](tx, func(s yieldgap.Scenario) (string, uint) { return s.Name, s.ID })
			if err != nil {
				return err
			}
			if err := tx.Where("1 = 1").Delete(&yieldgap.YieldStatistics{}).Error; err != nil {
				return fmt.Errorf("clear yield statistics: %w", err)
			}
			for i, sr := range yieldRows {
				key := fmt.Sprintf("%s #%d", SheetYieldStatistics, i+1)
				row := yieldgap.YieldStatistics{Province: sr.province, Year: sr.year, Distribution: sr.dist, DataSource: SourceExcelImport}
				if sr.group != "" && !aggregateLabel(sr.group) {
					id, ok := scenarios[sr.group]
					if !ok {
						rep.skipped(key, "unknown scenario %q", sr.group)
						continue
					}
					row.ScenarioID = &id
				}
				if row.VarietyID, err = varieties.id(sr.variety); err != nil {
					return err
				}
				if err := tx.Omit("Variety", "Scenario").Create(&row).Error; err != nil {
					return fmt.Errorf("insert %s: %w", key, err)
				}
				rep.created(key)
			}
		}

		if haveGap {
			gapTypes, err := nameIndex[yieldgap.GapType](tx, func(g yieldgap.GapType) (string, uint) { return g.Name, g.ID })
			if err != nil {
				return err
			}
			if err := tx.Where("1 = 1").Delete(&yieldgap.GapStatistics{}).Error; err != nil {
				return fmt.Errorf("clear gap statistics: %w", err)
			}
			for i, sr := range gapRows {
				key := fmt.Sprintf("%s #%d", SheetGapStatistics, i+1)
				row := yieldgap.GapStatistics{Province: sr.province, Year: sr.year, Distribution: sr.dist, DataSource: SourceExcelImport}
				if sr.group != "" && !aggregateLabel(sr.group) {
					id, ok := gapTypes[sr.group]
					if !ok {
						rep.skipped(key, "unknown gap type %q", sr.group)
						continue
					}
					row.GapTypeID = &id
				}
				if row.VarietyID, err = varieties.id(sr.variety); err != nil {
					return err
				}
				if err := tx.Omit("Variety", "GapType").Create(&row).Error; err != nil {
					return fmt.Errorf("insert %s: %w", key, err)
				}
				rep.created(key)
			}
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	return rep.finish(), nil
}

func nameIndex[T any](tx *gorm.DB, key func(T) (string, uint)) (map[string]uint, error) {
	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		name, id := key(r)
		out[name] = id
	}
	return out, nil
}

type varietyCache struct {
	tx  *gorm.DB
	ids map[string]uint
}

// id get-or-creates the named variety; "" means no variety.
func (c varietyCache) id(name string) (*uint, error) {
	if name == "" {
		return nil, nil
	}
	if id, ok := c.ids[name]; ok {
		return &id, nil
	}
	v := yieldgap.Variety{Name: name}
	if err := c.tx.Where(yieldgap.Variety{Name: name}).FirstOrCreate(&v).Error; err != nil {
		return nil, fmt.Errorf("get variety %q: %w", name, err)
	}
	c.ids[name] = v.ID
	return &v.ID, nil
}

// Describe summarises values. Std is nil for fewer than two values; quantiles
// use linear interpolation of the empirical distribution.
func Describe(values []float64) (yieldgap.Distribution, error) {
	if len(values) == 0 {
		return yieldgap.Distribution{}, errors.New("describe: no values")
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)

	q := func(p float64) *float64 {
		v := stat.Quantile(p, stat.LinInterp, x, nil)
		return &v
	}
	minV, maxV := x[0], x[len(x)-1]

	d := yieldgap.Distribution{
		Count:  len(x),
		Mean:   stat.Mean(x, nil),
		Min:    &minV,
		Q25:    q(0.25),
		Median: q(0.5),
		Q75:    q(0.75),
		Max:    &maxV,
	}
	if len(x) > 1 {
		sd := stat.StdDev(x, nil)
		d.Std = &sd
	}
	return d, nil
}

// ComputeParcelStatistics derives Observed yield statistics per variety,
// province and year from parcel yields, replacing earlier derived rows.
// Parcels without a positive yield per hectare are ignored.
func ComputeParcelStatistics(ctx context.Context, d *gorm.DB) (*Report, error) {
	rep := newReport("parcel-statistics", "parcel_points")

	type groupKey struct {
		variety, province string
		year              int
	}

	err := d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parcels []yieldgap.ParcelPoint
		if err := tx.Where("yield_per_ha IS NOT NULL AND yield_per_ha > 0").Find(&parcels).Error; err != nil {
			return fmt.Errorf("list parcels: %w", err)
		}

		var observed yieldgap.Scenario
		if err := tx.Where("name = ?", ScenarioObserved).First(&observed).Error; err != nil {
			return fmt.Errorf("find Observed scenario: %w", err)
		}

		groups := map[groupKey][]float64{}
		for _, p := range parcels {
			k := groupKey{p.Variety, p.Province, p.Year}
			groups[k] = append(groups[k], *p.YieldPerHa)
		}
		keys := make([]groupKey, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if a.variety != b.variety {
				return a.variety < b.variety
			}
			if a.province != b.province {
				return a.province < b.province
			}
			return a.year < b.year
		})

		if err := tx.Where("data_source = ?", SourceParcelPoints).Delete(&yieldgap.YieldStatistics{}).Error; err != nil {
			return fmt.Errorf("clear derived statistics: %w", err)
		}

		varieties := varietyCache{tx: tx, ids: map[string]uint{}}
		for _, k := range keys {
			label := fmt.Sprintf("%s/%s/%d", k.variety, k.province, k.year)
			dist, err := Describe(groups[k])
			if err != nil {
				rep.skipped(label, "%v", err)
				continue
			}

			row := yieldgap.YieldStatistics{
				ScenarioID:   &observed.ID,
				Distribution: dist,
				DataSource:   SourceParcelPoints,
			}
			if k.variety != unknownLabel {
				if row.VarietyID, err = varieties.id(k.variety); err != nil {
					return err
				}
			}
			if k.province != unknownLabel {
				prov := k.province
				row.Province = &prov
			}
			year := k.year
			row.Year = &year

			if err := tx.Omit("Variety", "Scenario").Create(&row).Error; err != nil {
				return fmt.Errorf("insert %s: %w", label, err)
			}
			rep.created(label)
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	return rep.finish(), nil
}
