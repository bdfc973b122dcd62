package geo

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

type simplifier interface {
	Simplify(tolerance float64) geom.Geom
}

type centroider interface {
	Centroid() geom.Point
}

// ToGeographic returns a transform from sr to WGS84 longitude/latitude.
func ToGeographic(sr *proj.SR) (proj.Transformer, error) {
	dst, err := proj.Parse(WGS84)
	if err != nil {
		return nil, fmt.Errorf("parse WGS84: %w", err)
	}
	t, err := sr.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("build transform: %w", err)
	}
	return t, nil
}

// Simplify reduces vertex count with the given tolerance in coordinate units.
// Geometries without a simplifier, and non-positive tolerances, pass through.
func Simplify(g geom.Geom, tolerance float64) geom.Geom {
	if tolerance <= 0 || g == nil {
		return g
	}
	if s, ok := g.(simplifier); ok {
		return s.Simplify(tolerance)
	}
	return g
}

// Centroid returns the area centroid of polygonal geometry, the mean of point
// sets, and the bounds centre of anything else.
func Centroid(g geom.Geom) (geom.Point, error) {
	switch v := g.(type) {
	case nil:
		return geom.Point{}, fmt.Errorf("centroid of empty geometry")
	case geom.Point:
		return v, nil
	case geom.MultiPoint:
		if len(v) == 0 {
			return geom.Point{}, fmt.Errorf("centroid of empty multipoint")
		}
		var sx, sy float64
		for _, p := range v {
			sx += p.X
			sy += p.Y
		}
		n := float64(len(v))
		return geom.Point{X: sx / n, Y: sy / n}, nil
	}

	if c, ok := g.(centroider); ok {
		p := c.Centroid()
		if !math.IsNaN(p.X) && !math.IsNaN(p.Y) {
			return p, nil
		}
	}

	b := g.Bounds()
	if b == nil {
		return geom.Point{}, fmt.Errorf("centroid: geometry has no bounds")
	}
	return geom.Point{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}, nil
}
