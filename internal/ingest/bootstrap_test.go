package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/yieldgap-ma/yg-backend/internal/ingest"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
)

func TestBootstrap_MissingInputsSkipSteps(t *testing.T) {
	d := migratedDB(t)

	res, err := ingest.Bootstrap(context.Background(), d, ingest.BootstrapOptions{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !res.Ran || len(res.Steps) != 4 {
		t.Fatalf("expected 4 attempted steps, got %+v", res)
	}
	want := []string{"country", "provinces", "varieties", "yields"}
	for i, s := range res.Steps {
		if s.Name != want[i] || s.Status != ingest.StepSkipped {
			t.Errorf("step %d: expected %s skipped, got %s %s", i, want[i], s.Name, s.Status)
		}
	}
}

func TestBootstrap_LoadsAvailableInputs(t *testing.T) {
	d := migratedDB(t)
	seedProvinces(t, d, "SETTAT")

	dir := t.TempDir()
	body, err := os.ReadFile(scenarioWorkbook(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ingest.YieldWorkbook), body, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := ingest.Bootstrap(context.Background(), d, ingest.BootstrapOptions{
		DataDir:     dir,
		ProvinceMap: map[string]string{"Settat": "SETTAT"},
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if res.Succeeded() != 1 || res.Steps[3].Status != ingest.StepOK {
		t.Errorf("expected only the yield step to run, got %+v", res.Steps)
	}
	if res.Yields != 2 {
		t.Errorf("expected 2 yield rows after bootstrap, got %d", res.Yields)
	}
}

func TestBootstrap_PopulatedStoreUntouched(t *testing.T) {
	d := migratedDB(t)
	seedProvinces(t, d, "SETTAT")
	var b yieldgap.AdministrativeBoundary
	d.First(&b)
	crop := yieldgap.Crop{Name: "wheat"}
	d.Create(&crop)
	row := yieldgap.YieldData{BoundaryID: b.ID, CropID: crop.ID, Year: 2020}
	if err := yieldgap.UpsertYieldData(d, &row); err != nil {
		t.Fatal(err)
	}

	res, err := ingest.Bootstrap(context.Background(), d, ingest.BootstrapOptions{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ran || len(res.Steps) != 0 {
		t.Errorf("expected no steps on a populated store, got %+v", res)
	}

	res, err = ingest.Bootstrap(context.Background(), d, ingest.BootstrapOptions{DataDir: t.TempDir(), Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ran {
		t.Error("expected Force to run the steps")
	}
}
