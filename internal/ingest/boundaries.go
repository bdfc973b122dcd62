package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/yieldgap-ma/yg-backend/internal/db"
	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

// BoundaryOptions configures a boundary load.
type BoundaryOptions struct {
	Path      string
	Level     string
	NameField string
	CodeField string

	// Tolerance is the simplification tolerance in degrees.
	Tolerance float64
}

// Default boundary load settings, matching the province shapefile.
const (
	DefaultBoundaryLevel     = "province"
	DefaultBoundaryNameField = "NOM_PROV"
	DefaultBoundaryCodeField = "CODE_PROVI"
	DefaultBoundaryTolerance = 0.01
)

func (o BoundaryOptions) withDefaults() BoundaryOptions {
	if o.Level == "" {
		o.Level = DefaultBoundaryLevel
	}
	if o.NameField == "" {
		o.NameField = DefaultBoundaryNameField
	}
	if o.CodeField == "" {
		o.CodeField = DefaultBoundaryCodeField
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultBoundaryTolerance
	}
	return o
}

// LoadBoundaries upserts every feature of the shapefile at opts.Path.
func LoadBoundaries(ctx context.Context, d *gorm.DB, opts BoundaryOptions) (*Report, error) {
	opts = opts.withDefaults()

	if _, err := os.Stat(opts.Path); err != nil {
		return newReport("boundaries", opts.Path), fmt.Errorf("boundary shapefile: %w", err)
	}

	r, err := OpenShapefile(opts.Path)
	if err != nil {
		return newReport("boundaries", opts.Path), err
	}
	defer r.Close()
	log.Printf("[boundaries] %s: fields %v", opts.Path, r.Fields())

	return UpsertBoundaries(ctx, d, r, opts)
}

// UpsertBoundaries stores features keyed by code. A new code creates a
// boundary; an existing one keeps its name and level and has its geometry
// replaced. Features whose geometry cannot be prepared are stored without one.
func UpsertBoundaries(ctx context.Context, d *gorm.DB, r FeatureReader, opts BoundaryOptions) (*Report, error) {
	opts = opts.withDefaults()
	rep := newReport("boundaries", opts.Path)
	tx := d.WithContext(ctx)

	for {
		f, ok := r.Next()
		if !ok {
			break
		}

		fallback := fmt.Sprintf("%s_%d", opts.Level, f.Index)
		name := attrOr(f.Attributes, opts.NameField, fallback)
		code := attrOr(f.Attributes, opts.CodeField, fallback)

		geometry, err := boundaryGeometry(f, opts.Tolerance)
		if err != nil {
			log.Printf("[boundaries] %s (%s): storing without geometry: %v", name, code, err)
		}

		var existing yieldgap.AdministrativeBoundary
		err = tx.Where("code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			b := yieldgap.AdministrativeBoundary{Name: name, Level: opts.Level, Code: code, GeometryJSON: geometry}
			err = tx.Create(&b).Error
			if err == nil {
				rep.created(code)
				continue
			}
			if !db.IsUniqueViolation(err) {
				rep.failed(code, err)
				continue
			}
			// another writer created the code after the lookup
			err = tx.Where("code = ?", code).First(&existing).Error
		}
		if err != nil {
			rep.failed(code, err)
			continue
		}

		if geometry != nil {
			if err := tx.Model(&existing).Update("geometry_json", *geometry).Error; err != nil {
				rep.failed(code, err)
				continue
			}
		}
		rep.updated(code)
	}

	if err := r.Err(); err != nil {
		return rep.finish(), fmt.Errorf("read features: %w", err)
	}
	return rep.finish(), nil
}

func boundaryGeometry(f Feature, tolerance float64) (*string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Geometry == nil {
		return nil, errors.New("empty geometry")
	}
	text, err := geo.EncodeGeoJSON(geo.Simplify(f.Geometry, tolerance))
	if err != nil {
		return nil, err
	}
	return &text, nil
}

func attrOr(attrs map[string]string, field, fallback string) string {
	if v, ok := attrs[field]; ok && v != "" {
		return v
	}
	return fallback
}
