package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingSheet  = errors.New("missing sheet")
	ErrMissingColumn = errors.New("missing required column")
)

// table is a header-indexed view over spreadsheet or CSV rows.
type table struct {
	col  map[string]int
	rows [][]string
}

func newTable(records [][]string) *table {
	t := &table{col: map[string]int{}}
	if len(records) == 0 {
		return t
	}
	header := records[0]
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.col[h]; !dup {
			t.col[h] = i
		}
	}
	t.rows = records[1:]
	return t
}

func (t *table) has(name string) bool {
	_, ok := t.col[name]
	return ok
}

// require fails on the first absent column.
func (t *table) require(names ...string) error {
	for _, n := range names {
		if !t.has(n) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return nil
}

// resolve returns the first alias present in the header, or "".
func (t *table) resolve(aliases []string) string {
	for _, a := range aliases {
		if t.has(a) {
			return a
		}
	}
	return ""
}

// get returns the trimmed cell of row under column name; "" when absent.
func (t *table) get(row []string, name string) string {
	if name == "" {
		return ""
	}
	i, ok := t.col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseFloat reads numeric cells, treating blanks and NaN markers as absent.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null", "none", "-":
		return 0, false
	}
	if strings.Contains(s, ",") {
		var ok bool
		if s, ok = decimalComma(s); !ok {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// decimalComma rewrites "2,5" as "2.5". A comma next to a point, a second
// comma, or exactly three digits after it reads as a thousands separator
// and is rejected, since "1,234" could be either 1.234 or 1234.
func decimalComma(s string) (string, bool) {
	i := strings.IndexByte(s, ',')
	if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
		return "", false
	}
	if frac := s[i+1:]; len(frac) == 3 && strings.Trim(frac, "0123456789") == "" {
		return "", false
	}
	return s[:i] + "." + s[i+1:], true
}

func parseFloatPtr(s string) *float64 {
	if v, ok := parseFloat(s); ok {
		return &v
	}
	return nil
}

// parseYear accepts "2020" and spreadsheet floats like "2020.0".
func parseYear(s string) (int, bool) {
	v, ok := parseFloat(s)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
