package yieldgap_test

import (
	"testing"

	"github.com/yieldgap-ma/yg-backend/internal/db/dbtest"
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

type seeded struct {
	settat, taza yieldgap.AdministrativeBoundary
	wheat        yieldgap.Crop
}

// seedYields stores two provinces with a 2020 row each and an average row for Settat.
func seedYields(t *testing.T, d *gorm.DB) seeded {
	t.Helper()

	s := seeded{
		settat: yieldgap.AdministrativeBoundary{Name: "SETTAT", Level: "province", Code: "P-SET", GeometryJSON: ptr(`{"type":"Point","coordinates":[-7.6,33]}`)},
		taza:   yieldgap.AdministrativeBoundary{Name: "TAZA", Level: "province", Code: "P-TAZ"},
		wheat:  yieldgap.Crop{Name: "wheat"},
	}
	for _, v := range []any{&s.settat, &s.taza, &s.wheat} {
		if err := d.Create(v).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows := []yieldgap.YieldData{
		{BoundaryID: s.settat.ID, CropID: s.wheat.ID, Year: 2020, ActualYield: ptr(3.0), PotentialYield: ptr(5.0), YieldGap: ptr(2.0), YieldGapPercent: ptr(40.0), DataSource: "Real Statistics"},
		{BoundaryID: s.taza.ID, CropID: s.wheat.ID, Year: 2020, ActualYield: ptr(1.5), PotentialYield: ptr(4.0), YieldGap: ptr(2.5), YieldGapPercent: ptr(62.5), DataSource: "Real Statistics"},
		{BoundaryID: s.settat.ID, CropID: s.wheat.ID, Year: yieldgap.AverageYear, ActualYield: ptr(2.8), PotentialYield: ptr(5.1), DataSource: "Real Statistics - Average"},
	}
	for i := range rows {
		if err := yieldgap.UpsertYieldData(d, &rows[i]); err != nil {
			t.Fatalf("seed yield: %v", err)
		}
	}
	return s
}
