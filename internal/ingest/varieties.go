package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/yieldgap-ma/yg-backend/internal/geo"
	"github.com/yieldgap-ma/yg-backend/internal/yieldgap"
	"gorm.io/gorm"
)

var (
	DefaultVarieties   = []string{"Achtar", "Arrehane", "Bandera", "Faiza", "Radia"}
	DefaultParcelYears = []int{2019, 2020, 2021}
)

const DefaultVarietyTolerance = 0.001

// VarietyOptions configures LoadVarietyShapefiles.
type VarietyOptions struct {
	Dir       string
	Varieties []string
	Years     []int
	Tolerance float64

	// Open reads one shapefile; defaults to OpenShapefile.
	Open func(path string) (FeatureReader, error)
}

func (o VarietyOptions) withDefaults() VarietyOptions {
	if len(o.Varieties) == 0 {
		o.Varieties = DefaultVarieties
	}
	if len(o.Years) == 0 {
		o.Years = DefaultParcelYears
	}
	if o.Tolerance == 0 {
		o.Tolerance = DefaultVarietyTolerance
	}
	if o.Open == nil {
		o.Open = func(path string) (FeatureReader, error) { return OpenShapefile(path) }
	}
	return o
}

// FindVarietyShapefile looks for <variety>.shp in dir, then one level below it.
func FindVarietyShapefile(dir, variety string) (string, bool) {
	name := variety + ".shp"
	direct := filepath.Join(dir, name)
	if fileExists(direct) {
		return direct, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name(), name)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// LoadVarietyShapefiles replaces all parcel points with one point per variety
// feature centroid and covered year. Area is 1 ha and yields are zero; a
// missing variety file only skips that variety.
func LoadVarietyShapefiles(ctx context.Context, d *gorm.DB, opts VarietyOptions) (*Report, error) {
	opts = opts.withDefaults()
	rep := newReport("varieties", opts.Dir)

	if st, err := os.Stat(opts.Dir); err != nil {
		return rep, fmt.Errorf("variety directory: %w", err)
	} else if !st.IsDir() {
		return rep, fmt.Errorf("variety directory: %s is not a directory", opts.Dir)
	}

	var points []yieldgap.ParcelPoint
	for _, variety := range opts.Varieties {
		path, ok := FindVarietyShapefile(opts.Dir, variety)
		if !ok {
			rep.skipped(variety, "shapefile not found")
			log.Printf("[varieties] %s.shp not found under %s", variety, opts.Dir)
			continue
		}

		found, err := varietyPoints(path, variety, opts, rep)
		if err != nil {
			rep.failed(variety, err)
			continue
		}
		points = append(points, found...)
	}

	if err := replaceParcels(ctx, d, points, rep); err != nil {
		return rep, err
	}
	return rep.finish(), nil
}

func varietyPoints(path, variety string, opts VarietyOptions, rep *Report) ([]yieldgap.ParcelPoint, error) {
	r, err := opts.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	area := 1.0
	var out []yieldgap.ParcelPoint
	for {
		f, ok := r.Next()
		if !ok {
			break
		}
		key := fmt.Sprintf("%s_%d", variety, f.Index)

		if f.Err != nil || f.Geometry == nil {
			rep.skipped(key, "no usable geometry: %v", f.Err)
			continue
		}
		c, err := geo.Centroid(geo.Simplify(f.Geometry, opts.Tolerance))
		if err != nil {
			rep.skipped(key, "%v", err)
			continue
		}
		if !geo.Morocco.Contains(c.X, c.Y) {
			rep.skipped(key, "centroid (%g, %g) outside bounds", c.X, c.Y)
			log.Printf("[varieties] %s skipped: centroid (%g, %g) outside bounds", key, c.X, c.Y)
			continue
		}

		for _, year := range opts.Years {
			zero := 0.0
			out = append(out, yieldgap.ParcelPoint{
				ParcelID:   fmt.Sprintf("%s_%d_%d", variety, f.Index, year),
				Province:   unknownLabel,
				Variety:    variety,
				Year:       year,
				Area:       &area,
				YieldTotal: &zero,
				YieldPerHa: &zero,
				X:          c.X,
				Y:          c.Y,
			})
		}
	}
	return out, r.Err()
}
