package ingest_test

import (
	"context"
	"testing"

	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/ingest"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
)

func moroccoTransformer(t *testing.T) *geo.Transformer {
	t.Helper()
	tr, err := geo.NewMoroccoTransformer()
	if err != nil {
		t.Fatalf("transformer: %v", err)
	}
	return tr
}

func TestLoadParcelSheet_AliasHeadersAndRejects(t *testing.T) {
	d := migratedDB(t)
	path := writeWorkbook(t, sheet{name: "plots", rows: [][]any{
		{"ID", "Longitude", "LAT", "Province", "Variety", "Year", "Area", "Yield", "yield (t/ha)"},
		{"P1", -7.6, 33.0, "Settat", "Achtar", 2020, 2.5, 7.5, 3.0},
		{"P2", 2.35, 48.85, "Paris", "Achtar", 2020, 1, 1, 1},
		{"", -5.0, 34.0, "", "", 2021, "", "", ""},
		{"P1", -7.6, 33.0, "Settat", "Achtar", 2020, 2.5, 7.5, 3.0},
		{"P4", -6.0, 34.0, "Taza", "Faiza", "", 1, 1, 1},
	}})

	rep, err := ingest.LoadParcelSheet(context.Background(), d, path, moroccoTransformer(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rep.Count(ingest.Created) != 2 || rep.Count(ingest.Skipped) != 3 {
		t.Errorf("expected 2 created and 3 skipped, got %+v", rep.Results)
	}

	var p1 yieldgap.ParcelPoint
	if err := d.Where("parcel_id = ?", "P1").First(&p1).Error; err != nil {
		t.Fatal(err)
	}
	if p1.X != -7.6 || p1.Y != 33 || p1.Year != 2020 {
		t.Errorf("unexpected P1 %+v", p1)
	}
	if p1.YieldPerHa == nil || *p1.YieldPerHa != 3 || p1.Area == nil || *p1.Area != 2.5 {
		t.Errorf("unexpected P1 values %+v", p1)
	}

	var anon yieldgap.ParcelPoint
	if err := d.Where("parcel_id = ?", "Parcel_2").First(&anon).Error; err != nil {
		t.Fatalf("expected generated id Parcel_2: %v", err)
	}
	if anon.Province != "Unknown" || anon.Variety != "Unknown" || anon.YieldPerHa != nil {
		t.Errorf("unexpected defaults %+v", anon)
	}

	var names []string
	if err := d.Model(&yieldgap.Variety{}).Order("name").Pluck("name", &names).Error; err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Achtar" {
		t.Errorf("expected only Achtar registered, got %v", names)
	}
}

func TestLoadParcelSheet_ReloadReplaces(t *testing.T) {
	d := migratedDB(t)
	tr := moroccoTransformer(t)
	ctx := context.Background()

	first := writeWorkbook(t, sheet{name: "plots", rows: [][]any{
		{"x", "y", "year"},
		{-7.6, 33.0, 2020},
		{-7.5, 33.1, 2020},
	}})
	if _, err := ingest.LoadParcelSheet(ctx, d, first, tr); err != nil {
		t.Fatal(err)
	}

	second := writeWorkbook(t, sheet{name: "plots", rows: [][]any{
		{"x", "y", "year"},
		{-6.0, 34.0, 2021},
	}})
	if _, err := ingest.LoadParcelSheet(ctx, d, second, tr); err != nil {
		t.Fatal(err)
	}

	if n := count(t, d, &yieldgap.ParcelPoint{}); n != 1 {
		t.Errorf("expected reload to leave 1 parcel, got %d", n)
	}
}

func TestLoadParcelSheet_NoCoordinateColumns(t *testing.T) {
	d := migratedDB(t)
	path := writeWorkbook(t, sheet{name: "plots", rows: [][]any{
		{"ID", "Year"},
		{"P1", 2020},
	}})

	if _, err := ingest.LoadParcelSheet(context.Background(), d, path, moroccoTransformer(t)); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestLoadParcelSheet_ReadsStoredValuesNotDisplayFormat(t *testing.T) {
	d := migratedDB(t)
	path := writeWorkbook(t, sheet{
		name: "plots",
		rows: [][]any{
			{"ID", "X", "Y", "Year", "yield (t/ha)"},
			{"P1", -7.6123, 33.0456, 2020, 3.456},
		},
		// 2 is "0.00", 1 is "0"
		formats: map[string]int{"B2": 2, "C2": 2, "D2": 1, "E2": 1},
	})

	if _, err := ingest.LoadParcelSheet(context.Background(), d, path, moroccoTransformer(t)); err != nil {
		t.Fatalf("load: %v", err)
	}

	var p yieldgap.ParcelPoint
	if err := d.Where("parcel_id = ?", "P1").First(&p).Error; err != nil {
		t.Fatal(err)
	}
	if p.X != -7.6123 || p.Y != 33.0456 {
		t.Errorf("expected stored coordinates (-7.6123, 33.0456), got (%v, %v)", p.X, p.Y)
	}
	if p.YieldPerHa == nil || *p.YieldPerHa != 3.456 {
		t.Errorf("expected yield 3.456, got %v", p.YieldPerHa)
	}
}

func TestLoadParcelSheet_DecimalCommaAndThousandsSeparator(t *testing.T) {
	d := migratedDB(t)
	path := writeWorkbook(t, sheet{name: "plots", rows: [][]any{
		{"ID", "X", "Y", "Year", "Area"},
		{"P1", "-7,6", "33,05", 2020, "1,234"},
		{"P2", "-7.6", "33.1", 2020, "1.234,5"},
		{"P3", "-7,600", "33.2", 2020, "2"},
	}})

	rep, err := ingest.LoadParcelSheet(context.Background(), d, path, moroccoTransformer(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// P3's x reads as a thousands-separated number
	if rep.Count(ingest.Created) != 2 || rep.Count(ingest.Skipped) != 1 {
		t.Errorf("expected 2 created and 1 skipped, got %+v", rep.Results)
	}

	var p1, p2 yieldgap.ParcelPoint
	if err := d.Where("parcel_id = ?", "P1").First(&p1).Error; err != nil {
		t.Fatal(err)
	}
	if p1.X != -7.6 || p1.Y != 33.05 {
		t.Errorf("expected decimal commas to parse, got (%v, %v)", p1.X, p1.Y)
	}
	if p1.Area != nil {
		t.Errorf("expected ambiguous area 1,234 to be dropped, got %v", *p1.Area)
	}
	if err := d.Where("parcel_id = ?", "P2").First(&p2).Error; err != nil {
		t.Fatal(err)
	}
	if p2.Area != nil {
		t.Errorf("expected mixed separators to be dropped, got %v", *p2.Area)
	}
}
