package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// Sheet names of the yield statistics workbook.
const (
	SheetProvinceScenario     = "Yield_By_Province_Scenario"
	SheetProvinceYearScenario = "Yield_By_Province_Year_Scenario"
)

// Data sources recorded on computed yield rows.
const (
	SourceYearly  = "Real Statistics"
	SourceAverage = "Real Statistics - Average"
)

// ScenarioWorkbook holds mean yields keyed by normalized province name.
type ScenarioWorkbook struct {
	Average map[string]ScenarioValues
	Yearly  map[string]map[int]ScenarioValues
	Years   []int
}

// ReadScenarioWorkbook reads both scenario sheets. Columns may appear in any
// order; Province, Scenario and Mean are required on both sheets and Year on
// the per-year sheet. The first value seen for a key wins.
func ReadScenarioWorkbook(path string) (*ScenarioWorkbook, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	avg, err := sheetTable(f, SheetProvinceScenario)
	if err != nil {
		return nil, err
	}
	if err := avg.require("Province", "Scenario", "Mean"); err != nil {
		return nil, fmt.Errorf("%s: %w", SheetProvinceScenario, err)
	}

	yearly, err := sheetTable(f, SheetProvinceYearScenario)
	if err != nil {
		return nil, err
	}
	if err := yearly.require("Province", "Year", "Scenario", "Mean"); err != nil {
		return nil, fmt.Errorf("%s: %w", SheetProvinceYearScenario, err)
	}

	wb := &ScenarioWorkbook{
		Average: map[string]ScenarioValues{},
		Yearly:  map[string]map[int]ScenarioValues{},
	}

	for _, row := range avg.rows {
		prov := NormalizeProvince(avg.get(row, "Province"))
		scenario := avg.get(row, "Scenario")
		mean, ok := parseFloat(avg.get(row, "Mean"))
		if prov == "" || scenario == "" || !ok {
			continue
		}
		if wb.Average[prov] == nil {
			wb.Average[prov] = ScenarioValues{}
		}
		if _, seen := wb.Average[prov][scenario]; !seen {
			wb.Average[prov][scenario] = mean
		}
	}

	yearSet := map[int]struct{}{}
	for _, row := range yearly.rows {
		prov := NormalizeProvince(yearly.get(row, "Province"))
		scenario := yearly.get(row, "Scenario")
		year, okYear := parseYear(yearly.get(row, "Year"))
		mean, okMean := parseFloat(yearly.get(row, "Mean"))
		if prov == "" || scenario == "" || !okYear || !okMean {
			continue
		}
		yearSet[year] = struct{}{}
		if wb.Yearly[prov] == nil {
			wb.Yearly[prov] = map[int]ScenarioValues{}
		}
		if wb.Yearly[prov][year] == nil {
			wb.Yearly[prov][year] = ScenarioValues{}
		}
		if _, seen := wb.Yearly[prov][year][scenario]; !seen {
			wb.Yearly[prov][year][scenario] = mean
		}
	}

	for y := range yearSet {
		wb.Years = append(wb.Years, y)
	}
	sort.Ints(wb.Years)
	return wb, nil
}

// YieldOptions configures LoadYieldGaps.
type YieldOptions struct {
	// ProvinceMap translates workbook province names to boundary names.
	ProvinceMap map[string]string
	// Crop is get-or-created; defaults to "wheat".
	Crop string
}

// LoadYieldGaps replaces all yield rows with the decomposition computed from
// the workbook at path, one row per mapped province and year plus the average.
func LoadYieldGaps(ctx context.Context, d *gorm.DB, path string, opts YieldOptions) (*Report, error) {
	rep := newReport("yields", path)

	if _, err := os.Stat(path); err != nil {
		return rep, fmt.Errorf("yield workbook: %w", err)
	}
	wb, err := ReadScenarioWorkbook(path)
	if err != nil {
		return rep, err
	}
	if opts.Crop == "" {
		opts.Crop = "wheat"
	}
	log.Printf("[yields] %s: years=%v provinces=%d", path, wb.Years, len(wb.Average))

	excelNames := make([]string, 0, len(opts.ProvinceMap))
	for k := range opts.ProvinceMap {
		excelNames = append(excelNames, k)
	}
	sort.Strings(excelNames)

	err = d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&yieldgap.YieldData{}).Error; err != nil {
			return fmt.Errorf("clear yield data: %w", err)
		}

		crop := yieldgap.Crop{Name: opts.Crop}
		if err := tx.Where(yieldgap.Crop{Name: opts.Crop}).FirstOrCreate(&crop).Error; err != nil {
			return fmt.Errorf("get crop %q: %w", opts.Crop, err)
		}

		var provinces []yieldgap.AdministrativeBoundary
		if err := tx.Where("level = ?", "province").Find(&provinces).Error; err != nil {
			return fmt.Errorf("list provinces: %w", err)
		}
		byName := make(map[string]yieldgap.AdministrativeBoundary, len(provinces))
		for _, p := range provinces {
			byName[NormalizeProvince(p.Name)] = p
		}

		for _, excelName := range excelNames {
			boundary, ok := byName[NormalizeProvince(opts.ProvinceMap[excelName])]
			if !ok {
				rep.add(excelName, Skipped, "no matching province boundary")
				continue
			}
			key := NormalizeProvince(excelName)

			for _, year := range wb.Years {
				rowKey := fmt.Sprintf("%s/%d", boundary.Name, year)
				levels, ok := YearLevels(wb.Yearly[key][year])
				if !ok {
					rep.add(rowKey, Skipped, "missing Potential or Calibrated")
					continue
				}
				row := yieldRow(boundary.ID, crop.ID, year, Decompose(levels), SourceYearly)
				if err := yieldgap.UpsertYieldData(tx, &row); err != nil {
					return fmt.Errorf("store %s: %w", rowKey, err)
				}
				rep.created(rowKey)
			}

			rowKey := fmt.Sprintf("%s/average", boundary.Name)
			levels, ok := AverageLevels(wb.Average[key])
			if !ok {
				rep.add(rowKey, Skipped, "missing Potential or Observed")
				continue
			}
			row := yieldRow(boundary.ID, crop.ID, yieldgap.AverageYear, Decompose(levels), SourceAverage)
			if err := yieldgap.UpsertYieldData(tx, &row); err != nil {
				return fmt.Errorf("store %s: %w", rowKey, err)
			}
			rep.created(rowKey)
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	return rep.finish(), nil
}

func yieldRow(boundaryID, cropID uint, year int, d Decomposition, source string) yieldgap.YieldData {
	v := func(x float64) *float64 {
		r := round2(x)
		return &r
	}
	return yieldgap.YieldData{
		BoundaryID:            boundaryID,
		CropID:                cropID,
		Year:                  year,
		ActualYield:           v(d.Actual),
		PotentialYield:        v(d.Potential),
		WaterLimitedYield:     v(d.WaterLimited),
		NutrientLimitedYield:  v(d.NutrientLimited),
		UnfertilizedYield:     v(d.Unfertilized),
		YieldGap:              v(d.TotalGap),
		YieldGapPercent:       v(d.GapPercent),
		WaterGap:              v(d.WaterGap),
		NutrientGap:           v(d.NutrientGap),
		ManagementGap:         v(d.ManagementGap),
		FertilizerResponseGap: v(d.FertilizerResponse),
		DataSource:            source,
	}
}
