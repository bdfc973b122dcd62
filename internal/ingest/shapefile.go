package ingest

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/yieldgap-ma/yg-backend/internal/geo"
)

// Feature is one shapefile record in geographic coordinates.
type Feature struct {
	Index      int
	Geometry   geom.Geom
	Attributes map[string]string

	// Err is set when the geometry could not be read or reprojected.
	Err error
}

// FeatureReader yields features in file order.
type FeatureReader interface {
	Next() (Feature, bool)
	Err() error
	Close() error
}

// ShapefileReader reads an ESRI shapefile, reprojecting to WGS84 when a .prj
// file describes another system.
type ShapefileReader struct {
	path    string
	dec     *shp.Decoder
	fields  []string
	toWGS84 proj.Transformer
	index   int
}

// OpenShapefile opens path (the .shp file; .shx, .dbf and .prj sit beside it).
func OpenShapefile(path string) (*ShapefileReader, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %q: %w", path, err)
	}

	r := &ShapefileReader{path: path, dec: dec}
	for _, f := range dec.Fields() {
		r.fields = append(r.fields, strings.TrimSpace(f.String()))
	}

	sr, err := dec.SR()
	switch {
	case err != nil:
		log.Printf("[shapefile] %s: no usable .prj, assuming geographic coordinates: %v", path, err)
	case sr != nil:
		t, err := geo.ToGeographic(sr)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("shapefile %q: %w", path, err)
		}
		r.toWGS84 = t
	}
	return r, nil
}

// Fields lists the attribute names in the .dbf header.
func (r *ShapefileReader) Fields() []string { return r.fields }

func (r *ShapefileReader) Next() (Feature, bool) {
	g, attrs, more := r.dec.DecodeRowFields(r.fields...)
	if !more {
		return Feature{}, false
	}

	f := Feature{Index: r.index, Attributes: make(map[string]string, len(attrs))}
	r.index++
	for k, v := range attrs {
		f.Attributes[k] = strings.TrimSpace(strings.ReplaceAll(v, "\x00", ""))
	}

	if g == nil {
		f.Err = errors.New("unreadable geometry")
		return f, true
	}
	if r.toWGS84 != nil {
		pg, err := g.Transform(r.toWGS84)
		if err != nil {
			f.Err = fmt.Errorf("reproject: %w", err)
			return f, true
		}
		g = pg
	}
	f.Geometry = g
	return f, true
}

func (r *ShapefileReader) Err() error {
	return r.dec.Error()
}

func (r *ShapefileReader) Close() error {
	r.dec.Close()
	return nil
}
