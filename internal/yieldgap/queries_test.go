package yieldgap_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
)

func TestDistinctYieldYears_EmptyFallsBack(t *testing.T) {
	d := migratedDB(t)

	years, err := yieldgap.DistinctYieldYears(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{2019, 2020, 2021, 9999}
	if !reflect.DeepEqual(years, want) {
		t.Errorf("expected %v, got %v", want, years)
	}
}

func TestDistinctYieldYears_AlwaysIncludesAverage(t *testing.T) {
	d := migratedDB(t)
	s := seedYields(t, d)

	// drop the stored average row so 9999 has to be appended
	if err := d.Where("year = ?", yieldgap.AverageYear).Delete(&yieldgap.YieldData{}).Error; err != nil {
		t.Fatal(err)
	}
	extra := yieldgap.YieldData{BoundaryID: s.taza.ID, CropID: s.wheat.ID, Year: 2019, DataSource: "x"}
	if err := yieldgap.UpsertYieldData(d, &extra); err != nil {
		t.Fatal(err)
	}

	years, err := yieldgap.DistinctYieldYears(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{2019, 2020, 9999}
	if !reflect.DeepEqual(years, want) {
		t.Errorf("expected %v, got %v", want, years)
	}
}

func TestUpsertYieldData_SecondWriteUpdates(t *testing.T) {
	d := migratedDB(t)
	s := seedYields(t, d)

	again := yieldgap.YieldData{BoundaryID: s.settat.ID, CropID: s.wheat.ID, Year: 2020, ActualYield: ptr(3.3), DataSource: "CSV Import"}
	if err := yieldgap.UpsertYieldData(d, &again); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var rows []yieldgap.YieldData
	if err := d.Where("boundary_id = ? AND crop_id = ? AND year = ?", s.settat.ID, s.wheat.ID, 2020).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row for the triple, got %d", len(rows))
	}
	if rows[0].ActualYield == nil || *rows[0].ActualYield != 3.3 || rows[0].DataSource != "CSV Import" {
		t.Errorf("row not updated: %+v", rows[0])
	}
}

func TestYieldData_DuplicateInsertRejected(t *testing.T) {
	d := migratedDB(t)
	s := seedYields(t, d)

	dup := yieldgap.YieldData{BoundaryID: s.taza.ID, CropID: s.wheat.ID, Year: 2020, DataSource: "dup"}
	if err := d.Create(&dup).Error; err == nil {
		t.Fatal("expected unique constraint error")
	}

	var count int64
	d.Model(&yieldgap.YieldData{}).Where("boundary_id = ? AND year = ?", s.taza.ID, 2020).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestListYieldData_Filters(t *testing.T) {
	d := migratedDB(t)
	s := seedYields(t, d)
	ctx := context.Background()

	rows, err := yieldgap.ListYieldData(ctx, d, yieldgap.YieldFilter{CropName: "wheat", Year: ptr(2020)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Boundary == nil || r.Crop == nil || r.Crop.Name != "wheat" {
			t.Errorf("associations not loaded: %+v", r)
		}
	}

	rows, err = yieldgap.ListYieldData(ctx, d, yieldgap.YieldFilter{BoundaryID: &s.settat.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 Settat rows, got %d", len(rows))
	}

	rows, err = yieldgap.ListYieldData(ctx, d, yieldgap.YieldFilter{CropName: "barley"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no barley rows, got %d", len(rows))
	}
}

func TestListParcelPoints_ContainsFilter(t *testing.T) {
	d := migratedDB(t)
	ctx := context.Background()

	points := []yieldgap.ParcelPoint{
		{ParcelID: "P1", Province: "Beni Mellal", Variety: "Achtar", Year: 2020, X: -6.3, Y: 32.3},
		{ParcelID: "P2", Province: "Settat", Variety: "Faiza", Year: 2020, X: -7.6, Y: 33},
		{ParcelID: "P3", Province: "Settat", Variety: "Achtar", Year: 2021, X: -7.5, Y: 33.1},
	}
	if err := d.Create(&points).Error; err != nil {
		t.Fatal(err)
	}

	rows, err := yieldgap.ListParcelPoints(ctx, d, yieldgap.ParcelFilter{Variety: "acht"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 Achtar parcels, got %d", len(rows))
	}

	rows, err = yieldgap.ListParcelPoints(ctx, d, yieldgap.ParcelFilter{Province: "SETT", Year: ptr(2021)})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ParcelID != "P3" {
		t.Errorf("expected only P3, got %+v", rows)
	}
}

func TestVocabulary_RejectsUnknownNames(t *testing.T) {
	d := migratedDB(t)

	err := d.Create(&yieldgap.Scenario{Name: "Irrigated"}).Error
	if !errors.Is(err, yieldgap.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName for scenario, got %v", err)
	}
	err = d.Create(&yieldgap.GapType{Name: "Pest Gap"}).Error
	if !errors.Is(err, yieldgap.ErrUnknownName) {
		t.Errorf("expected ErrUnknownName for gap type, got %v", err)
	}

	var count int64
	d.Model(&yieldgap.Scenario{}).Count(&count)
	if int(count) != len(yieldgap.ScenarioNames) {
		t.Errorf("expected %d seeded scenarios, got %d", len(yieldgap.ScenarioNames), count)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	d := migratedDB(t)
	if err := yieldgap.Migrate(d); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var count int64
	d.Model(&yieldgap.GapType{}).Count(&count)
	if int(count) != len(yieldgap.GapTypeNames) {
		t.Errorf("expected %d gap types, got %d", len(yieldgap.GapTypeNames), count)
	}
}

// The summary keeps the first row met per scenario; later rows never change it.
func TestSummarizeYieldStatistics_FirstRowPerGroup(t *testing.T) {
	potential := &yieldgap.Scenario{Name: "Potential"}
	rows := []yieldgap.YieldStatistics{
		{Scenario: potential, Distribution: yieldgap.Distribution{Mean: 6.1, Count: 10, Min: ptr(5.0), Max: ptr(7.0), Median: ptr(6.0)}},
		{Scenario: potential, Distribution: yieldgap.Distribution{Mean: 9.9, Count: 99}},
		{Distribution: yieldgap.Distribution{Mean: 2.2, Count: 4}},
	}

	got := yieldgap.SummarizeYieldStatistics(rows)

	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(got), got)
	}
	if p := got["Potential"]; p.Mean != 6.1 || p.Count != 10 || *p.Median != 6.0 {
		t.Errorf("expected first Potential row to win, got %+v", p)
	}
	if o := got[yieldgap.OverallGroup]; o.Mean != 2.2 {
		t.Errorf("expected Overall group from scenario-less row, got %+v", o)
	}
}

func TestListYieldStatistics_OrderingAndFilters(t *testing.T) {
	d := migratedDB(t)
	ctx := context.Background()

	var observed yieldgap.Scenario
	if err := d.First(&observed, "name = ?", "Observed").Error; err != nil {
		t.Fatal(err)
	}
	rows := []yieldgap.YieldStatistics{
		{Province: ptr("Settat"), Year: ptr(2019), ScenarioID: &observed.ID, Distribution: yieldgap.Distribution{Mean: 2.0, Count: 3}},
		{Province: ptr("Settat"), Year: ptr(2021), ScenarioID: &observed.ID, Distribution: yieldgap.Distribution{Mean: 3.0, Count: 3}},
		{Province: ptr("Taza"), Year: ptr(2020), Distribution: yieldgap.Distribution{Mean: 1.0, Count: 2}},
	}
	if err := d.Create(&rows).Error; err != nil {
		t.Fatal(err)
	}

	got, err := yieldgap.ListYieldStatistics(ctx, d, yieldgap.StatsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || *got[0].Year != 2021 || *got[2].Year != 2019 {
		t.Errorf("expected default -year ordering, got years %v, %v, %v", *got[0].Year, *got[1].Year, *got[2].Year)
	}

	got, err = yieldgap.ListYieldStatistics(ctx, d, yieldgap.StatsFilter{Province: "Settat", GroupID: &observed.ID, Ordering: "mean"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Mean != 2.0 || got[0].Scenario == nil || got[0].Scenario.Name != "Observed" {
		t.Errorf("unexpected filtered rows: %+v", got)
	}

	provinces, err := yieldgap.DistinctProvinces(ctx, d, &yieldgap.YieldStatistics{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(provinces, []string{"Settat", "Taza"}) {
		t.Errorf("unexpected provinces: %v", provinces)
	}

	years, err := yieldgap.DistinctYears(ctx, d, &yieldgap.YieldStatistics{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(years, []int{2019, 2020, 2021}) {
		t.Errorf("unexpected years: %v", years)
	}
}
