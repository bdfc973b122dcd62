package yieldgap

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultYears is returned by DistinctYieldYears when no yield rows exist.
var DefaultYears = []int{2019, 2020, 2021, AverageYear}

// YieldFilter narrows yield rows. Zero values do not filter.
type YieldFilter struct {
	CropName   string
	CropID     *uint
	Year       *int
	BoundaryID *uint
}

// ListYieldData returns yield rows with their boundary and crop loaded.
func ListYieldData(ctx context.Context, d *gorm.DB, f YieldFilter) ([]YieldData, error) {
	q := d.WithContext(ctx).Model(&YieldData{}).Preload("Boundary").Preload("Crop")

	if f.CropName != "" {
		q = q.Where("crop_id IN (?)", d.Model(&Crop{}).Select("id").Where("name = ?", f.CropName))
	}
	if f.CropID != nil {
		q = q.Where("crop_id = ?", *f.CropID)
	}
	if f.Year != nil {
		q = q.Where("year = ?", *f.Year)
	}
	if f.BoundaryID != nil {
		q = q.Where("boundary_id = ?", *f.BoundaryID)
	}

	var rows []YieldData
	if err := q.Order("boundary_id, crop_id, year").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DistinctYieldYears returns the sorted distinct yield years, always including
// AverageYear. An empty table yields DefaultYears.
func DistinctYieldYears(ctx context.Context, d *gorm.DB) ([]int, error) {
	var years []int
	if err := d.WithContext(ctx).Model(&YieldData{}).
		Distinct("year").Order("year").Pluck("year", &years).Error; err != nil {
		return nil, err
	}

	if len(years) == 0 {
		return append([]int(nil), DefaultYears...), nil
	}

	hasAverage := false
	for _, y := range years {
		if y == AverageYear {
			hasAverage = true
			break
		}
	}
	if !hasAverage {
		years = append(years, AverageYear)
	}
	sort.Ints(years)
	return years, nil
}

// UpsertYieldData inserts row or, when a row already exists for the same
// boundary, crop and year, overwrites its values.
func UpsertYieldData(d *gorm.DB, row *YieldData) error {
	return d.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "boundary_id"}, {Name: "crop_id"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"actual_yield", "potential_yield", "water_limited_yield",
			"nutrient_limited_yield", "unfertilized_yield",
			"yield_gap", "yield_gap_percent",
			"water_gap", "nutrient_gap", "management_gap", "fertilizer_response_gap",
			"data_source",
		}),
	}).Create(row).Error
}

// ParcelFilter narrows parcel points. Province and Variety match case-insensitive substrings.
type ParcelFilter struct {
	Province string
	Variety  string
	Year     *int
}

func ListParcelPoints(ctx context.Context, d *gorm.DB, f ParcelFilter) ([]ParcelPoint, error) {
	q := d.WithContext(ctx).Model(&ParcelPoint{})

	if f.Province != "" {
		q = q.Where("LOWER(province) LIKE ?", likePattern(f.Province))
	}
	if f.Variety != "" {
		q = q.Where("LOWER(variety) LIKE ?", likePattern(f.Variety))
	}
	if f.Year != nil {
		q = q.Where("year = ?", *f.Year)
	}

	var rows []ParcelPoint
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// StatsFilter narrows either statistics table. GroupID is the scenario id for
// yield statistics and the gap type id for gap statistics.
type StatsFilter struct {
	VarietyID *uint
	Province  string
	Year      *int
	GroupID   *uint

	// Ordering is one of year, mean, province, optionally prefixed with "-".
	Ordering string
}

// DefaultOrdering is applied to statistics listings without an explicit ordering.
const DefaultOrdering = "-year"

var orderingColumns = map[string]struct{}{
	"year":     {},
	"mean":     {},
	"province": {},
}

// ValidOrdering reports whether o can be used as StatsFilter.Ordering.
func ValidOrdering(o string) bool {
	_, ok := orderingColumns[strings.TrimPrefix(o, "-")]
	return o == "" || ok
}

func (f StatsFilter) apply(q *gorm.DB, groupColumn string) *gorm.DB {
	if f.VarietyID != nil {
		q = q.Where("variety_id = ?", *f.VarietyID)
	}
	if f.Province != "" {
		q = q.Where("province = ?", f.Province)
	}
	if f.Year != nil {
		q = q.Where("year = ?", *f.Year)
	}
	if f.GroupID != nil {
		q = q.Where(groupColumn+" = ?", *f.GroupID)
	}

	ordering := f.Ordering
	if ordering == "" || !ValidOrdering(ordering) {
		ordering = DefaultOrdering
	}
	col := strings.TrimPrefix(ordering, "-")
	return q.Order(clause.OrderByColumn{
		Column: clause.Column{Name: col},
		Desc:   strings.HasPrefix(ordering, "-"),
	}).Order("id")
}

func ListYieldStatistics(ctx context.Context, d *gorm.DB, f StatsFilter) ([]YieldStatistics, error) {
	q := f.apply(d.WithContext(ctx).Model(&YieldStatistics{}), "scenario_id")

	var rows []YieldStatistics
	if err := q.Preload("Variety").Preload("Scenario").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func ListGapStatistics(ctx context.Context, d *gorm.DB, f StatsFilter) ([]GapStatistics, error) {
	q := f.apply(d.WithContext(ctx).Model(&GapStatistics{}), "gap_type_id")

	var rows []GapStatistics
	if err := q.Preload("Variety").Preload("GapType").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DistinctProvinces lists the non-null provinces of model's table in order.
func DistinctProvinces(ctx context.Context, d *gorm.DB, model any) ([]string, error) {
	var out []string
	err := d.WithContext(ctx).Model(model).
		Where("province IS NOT NULL").
		Distinct("province").Order("province").
		Pluck("province", &out).Error
	return out, err
}

// DistinctYears lists the non-null years of model's table in order.
func DistinctYears(ctx context.Context, d *gorm.DB, model any) ([]int, error) {
	var out []int
	err := d.WithContext(ctx).Model(model).
		Where("year IS NOT NULL").
		Distinct("year").Order("year").
		Pluck("year", &out).Error
	return out, err
}

// SummaryEntry is one value of a statistics summary.
type SummaryEntry struct {
	Mean   float64  `json:"mean"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Median *float64 `json:"median"`
	Count  int      `json:"count"`
}

// OverallGroup keys summary rows that have no scenario or gap type.
const OverallGroup = "Overall"

// SummarizeYieldStatistics groups rows by scenario name and keeps the values of
// the first row met in each group. Values are not aggregated.
func SummarizeYieldStatistics(rows []YieldStatistics) map[string]SummaryEntry {
	out := make(map[string]SummaryEntry)
	for _, r := range rows {
		key := OverallGroup
		if r.Scenario != nil {
			key = r.Scenario.Name
		}
		if _, seen := out[key]; !seen {
			out[key] = entryOf(r.Distribution)
		}
	}
	return out
}

// SummarizeGapStatistics is SummarizeYieldStatistics keyed by gap type name.
func SummarizeGapStatistics(rows []GapStatistics) map[string]SummaryEntry {
	out := make(map[string]SummaryEntry)
	for _, r := range rows {
		key := OverallGroup
		if r.GapType != nil {
			key = r.GapType.Name
		}
		if _, seen := out[key]; !seen {
			out[key] = entryOf(r.Distribution)
		}
	}
	return out
}

func entryOf(d Distribution) SummaryEntry {
	return SummaryEntry{Mean: d.Mean, Min: d.Min, Max: d.Max, Median: d.Median, Count: d.Count}
}
