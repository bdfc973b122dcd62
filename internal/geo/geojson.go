package geo

import (
	"encoding/json"
	"fmt"

	"github.com/ctessum/geom"
)

// Geometry is a GeoJSON geometry object.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

type position [2]float64

// EncodeGeoJSON renders g as GeoJSON geometry text.
func EncodeGeoJSON(g geom.Geom) (string, error) {
	obj, err := ToGeometry(g)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshal geometry: %w", err)
	}
	return string(b), nil
}

// ToGeometry converts g into its GeoJSON object form.
func ToGeometry(g geom.Geom) (Geometry, error) {
	switch v := g.(type) {
	case geom.Point:
		return Geometry{Type: "Point", Coordinates: position{v.X, v.Y}}, nil
	case geom.MultiPoint:
		return Geometry{Type: "MultiPoint", Coordinates: line(v)}, nil
	case geom.LineString:
		return Geometry{Type: "LineString", Coordinates: line(v)}, nil
	case geom.MultiLineString:
		out := make([][]position, 0, len(v))
		for _, ls := range v {
			out = append(out, line(ls))
		}
		return Geometry{Type: "MultiLineString", Coordinates: out}, nil
	case geom.Polygon:
		return Geometry{Type: "Polygon", Coordinates: polygon(v)}, nil
	case geom.MultiPolygon:
		out := make([][][]position, 0, len(v))
		for _, p := range v {
			out = append(out, polygon(p))
		}
		return Geometry{Type: "MultiPolygon", Coordinates: out}, nil
	case nil:
		return Geometry{}, fmt.Errorf("encode geometry: nil geometry")
	default:
		return Geometry{}, fmt.Errorf("encode geometry: unsupported type %T", g)
	}
}

func line[P ~[]geom.Point](pts P) []position {
	out := make([]position, 0, len(pts))
	for _, p := range pts {
		out = append(out, position{p.X, p.Y})
	}
	return out
}

// GeoJSON rings must be closed.
func polygon(p geom.Polygon) [][]position {
	out := make([][]position, 0, len(p))
	for _, ring := range p {
		r := line(ring)
		if n := len(r); n > 0 && r[0] != r[n-1] {
			r = append(r, r[0])
		}
		out = append(out, r)
	}
	return out
}
