package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultProvinceMap translates province names used in the yield workbook into
// the names carried by the province boundary shapefile.
var DefaultProvinceMap = map[string]string{
	"Beni-Mellal":  "BENI MELLAL",
	"Berrechid":    "BERRECHID",
	"El-Jadida":    "EL JADIDA",
	"Kenitra":      "KENITRA",
	"Khemisset":    "KHEMISSET",
	"Khenifra":     "KHENIFRA",
	"Larache":      "LARACHE",
	"Meknes":       "MEKNES",
	"Rehamna":      "REHAMNA",
	"Settat":       "SETTAT",
	"Sidi-Kacem":   "SIDI KACEM",
	"Sidi-Slimane": "SIDI SLIMANE",
	"Taounate":     "TAOUNATE",
	"Taza":         "TAZA",
}

type provinceFile struct {
	Provinces map[string]string `yaml:"provinces"`
}

// LoadProvinceMap returns the translation table from path, or a copy of
// DefaultProvinceMap when path is empty.
//
// File format:
//
//	provinces:
//	  Beni-Mellal: BENI MELLAL
//	  El-Jadida: EL JADIDA
func LoadProvinceMap(path string) (map[string]string, error) {
	if path == "" {
		out := make(map[string]string, len(DefaultProvinceMap))
		for k, v := range DefaultProvinceMap {
			out[k] = v
		}
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading province map %q: %w", path, err)
	}

	var pf provinceFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parsing province map %q: %w", path, err)
	}
	if len(pf.Provinces) == 0 {
		return nil, fmt.Errorf("province map %q has no provinces", path)
	}
	return pf.Provinces, nil
}
