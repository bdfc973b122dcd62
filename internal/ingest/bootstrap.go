package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// Input locations below the data directory.
var (
	CountryShapefile  = filepath.Join("Shapefiles", "Morocco", "Morocco.shp")
	ProvinceShapefile = filepath.Join("Shapefiles", "Concerned_Provinces.shp")
	VarietyDir        = filepath.Join("Shapefiles", "Varieties")
	YieldWorkbook     = "Yield_Statistics_Complete_Analysis.xlsx"
	ParcelWorkbook    = "plot_v_p.xlsx"
)

// StepStatus is the outcome of one bootstrap step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

type StepResult struct {
	Name   string
	Status StepStatus
	Report *Report
	Err    error
}

// BootstrapOptions configures Bootstrap.
type BootstrapOptions struct {
	DataDir     string
	ProvinceMap map[string]string

	// Force loads even when the store already holds boundaries and yields.
	Force bool
}

// BootstrapResult lists the steps attempted. Ran is false when the store was
// already populated.
type BootstrapResult struct {
	Ran        bool
	Boundaries int64
	Yields     int64
	Steps      []StepResult
}

// Bootstrap loads the country outline, the provinces, the variety shapefiles and
// the yield workbook, in that order, when the store lacks boundaries or yields.
// A missing input skips its step; a failing step does not stop the next.
func Bootstrap(ctx context.Context, d *gorm.DB, opts BootstrapOptions) (*BootstrapResult, error) {
	res := &BootstrapResult{}
	if err := counts(ctx, d, res); err != nil {
		return res, err
	}
	log.Printf("[bootstrap] current data: %d boundaries, %d yield records", res.Boundaries, res.Yields)

	if res.Boundaries > 0 && res.Yields > 0 && !opts.Force {
		return res, nil
	}
	res.Ran = true

	in := func(rel string) string { return filepath.Join(opts.DataDir, rel) }

	res.step(ctx, "country", in(CountryShapefile), func(path string) (*Report, error) {
		return LoadBoundaries(ctx, d, BoundaryOptions{Path: path, Level: "country"})
	})
	res.step(ctx, "provinces", in(ProvinceShapefile), func(path string) (*Report, error) {
		return LoadBoundaries(ctx, d, BoundaryOptions{Path: path})
	})
	res.step(ctx, "varieties", in(VarietyDir), func(path string) (*Report, error) {
		return LoadVarietyShapefiles(ctx, d, VarietyOptions{Dir: path})
	})
	res.step(ctx, "yields", in(YieldWorkbook), func(path string) (*Report, error) {
		return LoadYieldGaps(ctx, d, path, YieldOptions{ProvinceMap: opts.ProvinceMap})
	})

	if err := counts(ctx, d, res); err != nil {
		return res, err
	}
	log.Printf("[bootstrap] final data: %d boundaries, %d yield records", res.Boundaries, res.Yields)
	return res, nil
}

func (res *BootstrapResult) step(ctx context.Context, name, path string, run func(string) (*Report, error)) {
	if !exists(path) {
		log.Printf("[bootstrap] %s: %s not found, skipping", name, path)
		res.Steps = append(res.Steps, StepResult{Name: name, Status: StepSkipped, Err: fmt.Errorf("not found: %s", path)})
		return
	}
	if err := ctx.Err(); err != nil {
		res.Steps = append(res.Steps, StepResult{Name: name, Status: StepFailed, Err: err})
		return
	}

	rep, err := run(path)
	if err != nil {
		log.Printf("[bootstrap] %s failed: %v", name, err)
		res.Steps = append(res.Steps, StepResult{Name: name, Status: StepFailed, Report: rep, Err: err})
		return
	}
	res.Steps = append(res.Steps, StepResult{Name: name, Status: StepOK, Report: rep})
}

// Succeeded counts the steps that completed.
func (res *BootstrapResult) Succeeded() int {
	n := 0
	for _, s := range res.Steps {
		if s.Status == StepOK {
			n++
		}
	}
	return n
}

func counts(ctx context.Context, d *gorm.DB, res *BootstrapResult) error {
	tx := d.WithContext(ctx)
	if err := tx.Model(&yieldgap.AdministrativeBoundary{}).Count(&res.Boundaries).Error; err != nil {
		return fmt.Errorf("count boundaries: %w", err)
	}
	if err := tx.Model(&yieldgap.YieldData{}).Count(&res.Yields).Error; err != nil {
		return fmt.Errorf("count yields: %w", err)
	}
	return nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
