package yieldgap

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// Handlers serves the read-only yield-gap API from one store handle.
type Handlers struct {
	db *gorm.DB
}

func NewHandlers(d *gorm.DB) *Handlers {
	return &Handlers{db: d}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// queryID parses an optional numeric id query parameter.
func queryID(r *http.Request, name string) (*uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(v)
	return &id, nil
}

func badParam(w http.ResponseWriter, name string) {
	http.Error(w, fmt.Sprintf("Invalid %s format", name), http.StatusBadRequest)
}

// getByID loads one row of dst's type by the {id} URL parameter.
func (h *Handlers) getByID(w http.ResponseWriter, r *http.Request, dst any, label string, preload ...string) bool {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badParam(w, "id")
		return false
	}

	q := h.db.WithContext(r.Context())
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.First(dst, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, label+" not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch "+label+": "+err.Error(), http.StatusInternalServerError)
		}
		return false
	}
	return true
}

// ListBoundaries returns all boundaries, optionally filtered by level or code.
func (h *Handlers) ListBoundaries(w http.ResponseWriter, r *http.Request) {
	q := h.db.WithContext(r.Context()).Model(&AdministrativeBoundary{})
	if level := r.URL.Query().Get("level"); level != "" {
		q = q.Where("level = ?", level)
	}
	if code := r.URL.Query().Get("code"); code != "" {
		q = q.Where("code = ?", code)
	}

	var boundaries []AdministrativeBoundary
	if err := q.Order("id").Find(&boundaries).Error; err != nil {
		http.Error(w, "Failed to fetch boundaries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, boundaries)
}

func (h *Handlers) GetBoundary(w http.ResponseWriter, r *http.Request) {
	var b AdministrativeBoundary
	if h.getByID(w, r, &b, "Boundary") {
		writeJSON(w, b)
	}
}

func (h *Handlers) ListCrops(w http.ResponseWriter, r *http.Request) {
	var crops []Crop
	if err := h.db.WithContext(r.Context()).Order("id").Find(&crops).Error; err != nil {
		http.Error(w, "Failed to fetch crops: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, crops)
}

func (h *Handlers) GetCrop(w http.ResponseWriter, r *http.Request) {
	var c Crop
	if h.getByID(w, r, &c, "Crop") {
		writeJSON(w, c)
	}
}

// yieldFilterFromQuery reads crop, crop_id, year and boundaryParam.
func yieldFilterFromQuery(w http.ResponseWriter, r *http.Request, boundaryParam string) (YieldFilter, bool) {
	f := YieldFilter{CropName: r.URL.Query().Get("crop")}

	year, err := queryInt(r, "year")
	if err != nil {
		badParam(w, "year")
		return f, false
	}
	f.Year = year

	cropID, err := queryID(r, "crop_id")
	if err != nil {
		badParam(w, "crop_id")
		return f, false
	}
	f.CropID = cropID

	if boundaryParam != "" {
		boundaryID, err := queryID(r, boundaryParam)
		if err != nil {
			badParam(w, boundaryParam)
			return f, false
		}
		f.BoundaryID = boundaryID
	}
	return f, true
}

// metricValue returns the named column of row, or nil for unknown names.
func metricValue(row YieldData, metric string) *float64 {
	switch metric {
	case "actual_yield":
		return row.ActualYield
	case "potential_yield":
		return row.PotentialYield
	case "water_limited_yield":
		return row.WaterLimitedYield
	case "nutrient_limited_yield":
		return row.NutrientLimitedYield
	case "unfertilized_yield":
		return row.UnfertilizedYield
	case "yield_gap":
		return row.YieldGap
	case "yield_gap_percent":
		return row.YieldGapPercent
	case "water_gap":
		return row.WaterGap
	case "nutrient_gap":
		return row.NutrientGap
	case "management_gap":
		return row.ManagementGap
	case "fertilizer_response_gap":
		return row.FertilizerResponseGap
	}
	return nil
}

// mapFeature is one choropleth entry: yield values plus the boundary outline.
type mapFeature struct {
	ID           uint   `json:"id"`
	BoundaryName string `json:"boundary_name"`
	BoundaryCode string `json:"boundary_code"`
	CropName     string `json:"crop_name"`
	Year         int    `json:"year"`

	ActualYield          *float64 `json:"actual_yield"`
	PotentialYield       *float64 `json:"potential_yield"`
	WaterLimitedYield    *float64 `json:"water_limited_yield"`
	NutrientLimitedYield *float64 `json:"nutrient_limited_yield"`
	UnfertilizedYield    *float64 `json:"unfertilized_yield"`

	YieldGap        *float64 `json:"yield_gap"`
	YieldGapPercent *float64 `json:"yield_gap_percent"`

	WaterGap              *float64 `json:"water_gap"`
	NutrientGap           *float64 `json:"nutrient_gap"`
	ManagementGap         *float64 `json:"management_gap"`
	FertilizerResponseGap *float64 `json:"fertilizer_response_gap"`

	Geometry    *string  `json:"geometry"`
	MetricValue *float64 `json:"metric_value"`
}

// YieldMap returns yield rows joined with their boundary geometry. The metric
// parameter (default actual_yield) selects the column copied into metric_value.
func (h *Handlers) YieldMap(w http.ResponseWriter, r *http.Request) {
	f, ok := yieldFilterFromQuery(w, r, "")
	if !ok {
		return
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "actual_yield"
	}

	rows, err := ListYieldData(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch yield data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]mapFeature, 0, len(rows))
	for _, row := range rows {
		item := mapFeature{
			ID:                    row.ID,
			Year:                  row.Year,
			ActualYield:           row.ActualYield,
			PotentialYield:        row.PotentialYield,
			WaterLimitedYield:     row.WaterLimitedYield,
			NutrientLimitedYield:  row.NutrientLimitedYield,
			UnfertilizedYield:     row.UnfertilizedYield,
			YieldGap:              row.YieldGap,
			YieldGapPercent:       row.YieldGapPercent,
			WaterGap:              row.WaterGap,
			NutrientGap:           row.NutrientGap,
			ManagementGap:         row.ManagementGap,
			FertilizerResponseGap: row.FertilizerResponseGap,
			MetricValue:           metricValue(row, metric),
		}
		if row.Boundary != nil {
			item.BoundaryName = row.Boundary.Name
			item.BoundaryCode = row.Boundary.Code
			item.Geometry = row.Boundary.GeometryJSON
		}
		if row.Crop != nil {
			item.CropName = row.Crop.Name
		}
		out = append(out, item)
	}
	writeJSON(w, out)
}

// yieldRecord is a yield row with its boundary and crop names.
type yieldRecord struct {
	YieldData
	BoundaryName string `json:"boundary_name"`
	CropName     string `json:"crop_name"`
}

func toRecord(row YieldData) yieldRecord {
	rec := yieldRecord{YieldData: row}
	if row.Boundary != nil {
		rec.BoundaryName = row.Boundary.Name
	}
	if row.Crop != nil {
		rec.CropName = row.Crop.Name
	}
	return rec
}

func (h *Handlers) writeYieldRecords(w http.ResponseWriter, r *http.Request, f YieldFilter) {
	rows, err := ListYieldData(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch yield data: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]yieldRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	writeJSON(w, out)
}

func (h *Handlers) ListYieldRecords(w http.ResponseWriter, r *http.Request) {
	f, ok := yieldFilterFromQuery(w, r, "boundary_id")
	if !ok {
		return
	}
	h.writeYieldRecords(w, r, f)
}

// YieldRecordsByRegion filters by region_id, crop_id and year.
func (h *Handlers) YieldRecordsByRegion(w http.ResponseWriter, r *http.Request) {
	f, ok := yieldFilterFromQuery(w, r, "region_id")
	if !ok {
		return
	}
	f.CropName = ""
	h.writeYieldRecords(w, r, f)
}

func (h *Handlers) GetYieldRecord(w http.ResponseWriter, r *http.Request) {
	var row YieldData
	if h.getByID(w, r, &row, "Yield record", "Boundary", "Crop") {
		writeJSON(w, toRecord(row))
	}
}

// ListYears returns the available yield years; 9999 stands for the average.
func (h *Handlers) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := DistinctYieldYears(r.Context(), h.db)
	if err != nil {
		http.Error(w, "Failed to fetch years: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, years)
}

// ExportHeader is the column header of the CSV export.
var ExportHeader = []string{
	"Region", "Crop", "Year",
	"Actual Yield (t/ha)", "Potential Yield (t/ha)",
	"Yield Gap (t/ha)", "Yield Gap (%)",
	"Data Source",
}

// ExportCSV streams the filtered yield rows as a CSV attachment.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, ok := yieldFilterFromQuery(w, r, "")
	if !ok {
		return
	}

	rows, err := ListYieldData(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch yield data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="yield_data.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		log.Printf("[export] write header: %v", err)
		return
	}
	for _, row := range rows {
		rec := toRecord(row)
		err := cw.Write([]string{
			rec.BoundaryName,
			rec.CropName,
			strconv.Itoa(row.Year),
			formatFloat(row.ActualYield),
			formatFloat(row.PotentialYield),
			formatFloat(row.YieldGap),
			formatFloat(row.YieldGapPercent),
			row.DataSource,
		})
		if err != nil {
			log.Printf("[export] write row %d: %v", row.ID, err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("[export] flush: %v", err)
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (h *Handlers) ListParcelPoints(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		badParam(w, "year")
		return
	}

	rows, err := ListParcelPoints(r.Context(), h.db, ParcelFilter{
		Province: r.URL.Query().Get("province"),
		Variety:  r.URL.Query().Get("variety"),
		Year:     year,
	})
	if err != nil {
		http.Error(w, "Failed to fetch parcel points: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *Handlers) ListVarieties(w http.ResponseWriter, r *http.Request) {
	var rows []Variety
	if err := h.db.WithContext(r.Context()).Order("name").Find(&rows).Error; err != nil {
		http.Error(w, "Failed to fetch varieties: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *Handlers) GetVariety(w http.ResponseWriter, r *http.Request) {
	var v Variety
	if h.getByID(w, r, &v, "Variety") {
		writeJSON(w, v)
	}
}

func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	var rows []Scenario
	if err := h.db.WithContext(r.Context()).Order("id").Find(&rows).Error; err != nil {
		http.Error(w, "Failed to fetch scenarios: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *Handlers) GetScenario(w http.ResponseWriter, r *http.Request) {
	var s Scenario
	if h.getByID(w, r, &s, "Scenario") {
		writeJSON(w, s)
	}
}

func (h *Handlers) ListGapTypes(w http.ResponseWriter, r *http.Request) {
	var rows []GapType
	if err := h.db.WithContext(r.Context()).Order("id").Find(&rows).Error; err != nil {
		http.Error(w, "Failed to fetch gap types: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *Handlers) GetGapType(w http.ResponseWriter, r *http.Request) {
	var g GapType
	if h.getByID(w, r, &g, "Gap type") {
		writeJSON(w, g)
	}
}
