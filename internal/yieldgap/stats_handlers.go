package yieldgap

import (
	"net/http"
)

// statsFilterFromQuery reads variety, province, year, groupParam and ordering.
// An empty groupParam skips the group filter.
func statsFilterFromQuery(w http.ResponseWriter, r *http.Request, groupParam string) (StatsFilter, bool) {
	f := StatsFilter{
		Province: r.URL.Query().Get("province"),
		Ordering: r.URL.Query().Get("ordering"),
	}

	variety, err := queryID(r, "variety")
	if err != nil {
		badParam(w, "variety")
		return f, false
	}
	f.VarietyID = variety

	year, err := queryInt(r, "year")
	if err != nil {
		badParam(w, "year")
		return f, false
	}
	f.Year = year

	if groupParam != "" {
		group, err := queryID(r, groupParam)
		if err != nil {
			badParam(w, groupParam)
			return f, false
		}
		f.GroupID = group
	}

	if !ValidOrdering(f.Ordering) {
		badParam(w, "ordering")
		return f, false
	}
	return f, true
}

type yieldStatRecord struct {
	YieldStatistics
	VarietyName  *string `json:"variety_name"`
	ScenarioName *string `json:"scenario_name"`
}

func yieldStatRecords(rows []YieldStatistics) []yieldStatRecord {
	out := make([]yieldStatRecord, 0, len(rows))
	for _, row := range rows {
		rec := yieldStatRecord{YieldStatistics: row}
		if row.Variety != nil {
			rec.VarietyName = &row.Variety.Name
		}
		if row.Scenario != nil {
			rec.ScenarioName = &row.Scenario.Name
		}
		out = append(out, rec)
	}
	return out
}

type gapStatRecord struct {
	GapStatistics
	VarietyName *string `json:"variety_name"`
	GapTypeName *string `json:"gap_type_name"`
}

func gapStatRecords(rows []GapStatistics) []gapStatRecord {
	out := make([]gapStatRecord, 0, len(rows))
	for _, row := range rows {
		rec := gapStatRecord{GapStatistics: row}
		if row.Variety != nil {
			rec.VarietyName = &row.Variety.Name
		}
		if row.GapType != nil {
			rec.GapTypeName = &row.GapType.Name
		}
		out = append(out, rec)
	}
	return out
}

// ListYieldStatistics also serves the filter-data endpoint.
func (h *Handlers) ListYieldStatistics(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r, "scenario")
	if !ok {
		return
	}
	rows, err := ListYieldStatistics(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch yield statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, yieldStatRecords(rows))
}

func (h *Handlers) GetYieldStatistic(w http.ResponseWriter, r *http.Request) {
	var row YieldStatistics
	if h.getByID(w, r, &row, "Yield statistic", "Variety", "Scenario") {
		writeJSON(w, yieldStatRecords([]YieldStatistics{row})[0])
	}
}

func (h *Handlers) YieldStatisticProvinces(w http.ResponseWriter, r *http.Request) {
	out, err := DistinctProvinces(r.Context(), h.db, &YieldStatistics{})
	if err != nil {
		http.Error(w, "Failed to fetch provinces: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(out))
}

func (h *Handlers) YieldStatisticYears(w http.ResponseWriter, r *http.Request) {
	out, err := DistinctYears(r.Context(), h.db, &YieldStatistics{})
	if err != nil {
		http.Error(w, "Failed to fetch years: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(out))
}

// YieldStatisticSummary reports, per scenario, the values of the first matching row.
func (h *Handlers) YieldStatisticSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r, "")
	if !ok {
		return
	}
	rows, err := ListYieldStatistics(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch yield statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, SummarizeYieldStatistics(rows))
}

func (h *Handlers) ListGapStatistics(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r, "gap_type")
	if !ok {
		return
	}
	rows, err := ListGapStatistics(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch gap statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, gapStatRecords(rows))
}

func (h *Handlers) GetGapStatistic(w http.ResponseWriter, r *http.Request) {
	var row GapStatistics
	if h.getByID(w, r, &row, "Gap statistic", "Variety", "GapType") {
		writeJSON(w, gapStatRecords([]GapStatistics{row})[0])
	}
}

func (h *Handlers) GapStatisticProvinces(w http.ResponseWriter, r *http.Request) {
	out, err := DistinctProvinces(r.Context(), h.db, &GapStatistics{})
	if err != nil {
		http.Error(w, "Failed to fetch provinces: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(out))
}

func (h *Handlers) GapStatisticYears(w http.ResponseWriter, r *http.Request) {
	out, err := DistinctYears(r.Context(), h.db, &GapStatistics{})
	if err != nil {
		http.Error(w, "Failed to fetch years: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(out))
}

// GapStatisticSummary reports, per gap type, the values of the first matching row.
func (h *Handlers) GapStatisticSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilterFromQuery(w, r, "")
	if !ok {
		return
	}
	rows, err := ListGapStatistics(r.Context(), h.db, f)
	if err != nil {
		http.Error(w, "Failed to fetch gap statistics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, SummarizeGapStatistics(rows))
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
