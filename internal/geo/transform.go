// Package geo converts planar Moroccan coordinates to geographic ones and
// prepares shapefile geometry for storage.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
)

var (
	ErrOutsideBounds = errors.New("coordinate outside region bounds")
	ErrProjection    = errors.New("coordinate could not be projected")
)

// Projection definitions in proj4 form.
const (
	WGS84 = "+proj=longlat +datum=WGS84 +no_defs"

	// MerchichNordMaroc is EPSG:26191.
	MerchichNordMaroc = "+proj=lcc +lat_1=33.3 +lat_0=33.3 +lon_0=-5.4 +k_0=0.999625769 " +
		"+x_0=500000 +y_0=300000 +a=6378249.2 +b=6356515 +towgs84=31,146,47,0,0,0,0 +units=m +no_defs"

	// MerchichSaharaNord is EPSG:26194.
	MerchichSaharaNord = "+proj=lcc +lat_1=26.1 +lat_0=26.1 +lon_0=-5.4 +k_0=0.9996 " +
		"+x_0=1200000 +y_0=400000 +a=6378249.2 +b=6356515 +towgs84=31,146,47,0,0,0,0 +units=m +no_defs"
)

// BBox is an axis-aligned longitude/latitude box.
type BBox struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Morocco is the acceptance box for every stored coordinate.
var Morocco = BBox{MinX: -17, MaxX: -1, MinY: 21, MaxY: 36}

func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// LooksProjected reports whether (x, y) cannot be a longitude/latitude pair.
func LooksProjected(x, y float64) bool {
	return math.Abs(x) > 180 || math.Abs(y) > 90
}

// Method records how a coordinate was resolved.
type Method string

const (
	MethodGeographic Method = "geographic"
	MethodPrimary    Method = "primary"
	MethodSecondary  Method = "secondary"
)

// Point is a resolved geographic coordinate.
type Point struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Method Method  `json:"method"`
}

type candidate struct {
	method Method
	fn     proj.Transformer
}

// Transformer resolves raw coordinates into points inside its bounds, trying the
// primary projection first and the secondary one second.
type Transformer struct {
	bounds     BBox
	candidates []candidate
}

// NewTransformer builds a Transformer from proj4 definitions of the primary and
// secondary planar systems.
func NewTransformer(bounds BBox, primary, secondary string) (*Transformer, error) {
	dst, err := proj.Parse(WGS84)
	if err != nil {
		return nil, fmt.Errorf("parse WGS84: %w", err)
	}

	t := &Transformer{bounds: bounds}
	for _, def := range []struct {
		method Method
		proj4  string
	}{
		{MethodPrimary, primary},
		{MethodSecondary, secondary},
	} {
		src, err := proj.Parse(def.proj4)
		if err != nil {
			return nil, fmt.Errorf("parse %s projection: %w", def.method, err)
		}
		fn, err := src.NewTransform(dst)
		if err != nil {
			return nil, fmt.Errorf("build %s transform: %w", def.method, err)
		}
		t.candidates = append(t.candidates, candidate{method: def.method, fn: fn})
	}
	return t, nil
}

// NewMoroccoTransformer uses Merchich Nord Maroc, then Merchich Sahara Nord.
func NewMoroccoTransformer() (*Transformer, error) {
	return NewTransformer(Morocco, MerchichNordMaroc, MerchichSaharaNord)
}

// Bounds returns the acceptance box.
func (t *Transformer) Bounds() BBox { return t.bounds }

// Transform resolves (x, y). The returned point is always inside the bounds;
// anything else is reported as an error wrapping ErrOutsideBounds or ErrProjection.
func (t *Transformer) Transform(x, y float64) (Point, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Point{}, fmt.Errorf("%w: non-finite input (%v, %v)", ErrProjection, x, y)
	}

	if !LooksProjected(x, y) {
		if t.bounds.Contains(x, y) {
			return Point{Lon: x, Lat: y, Method: MethodGeographic}, nil
		}
		return Point{}, fmt.Errorf("%w: (%g, %g)", ErrOutsideBounds, x, y)
	}

	failures := 0
	for _, c := range t.candidates {
		lon, lat, err := c.fn(x, y)
		if err != nil || math.IsNaN(lon) || math.IsNaN(lat) {
			failures++
			continue
		}
		if t.bounds.Contains(lon, lat) {
			return Point{Lon: lon, Lat: lat, Method: c.method}, nil
		}
	}

	if failures == len(t.candidates) {
		return Point{}, fmt.Errorf("%w: (%g, %g)", ErrProjection, x, y)
	}
	return Point{}, fmt.Errorf("%w: projected (%g, %g) landed outside", ErrOutsideBounds, x, y)
}
