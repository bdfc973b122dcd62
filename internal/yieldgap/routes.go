package yieldgap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// SetupRoutes returns the read-only API, meant to be mounted under /api.
func SetupRoutes(d *gorm.DB) http.Handler {
	r := chi.NewRouter()
	h := NewHandlers(d)

	r.Get("/boundaries", h.ListBoundaries)
	r.Get("/boundaries/{id}", h.GetBoundary)
	r.Get("/crops", h.ListCrops)
	r.Get("/crops/{id}", h.GetCrop)

	// Map and export views
	r.Get("/yield-data", h.YieldMap)
	r.Get("/years", h.ListYears)
	r.Get("/export-csv", h.ExportCSV)
	r.Get("/parcel-points", h.ListParcelPoints)

	r.Get("/yield-records", h.ListYieldRecords)
	r.Get("/yield-records/by-region", h.YieldRecordsByRegion)
	r.Get("/yield-records/{id}", h.GetYieldRecord)

	r.Get("/varieties", h.ListVarieties)
	r.Get("/varieties/{id}", h.GetVariety)
	r.Get("/scenarios", h.ListScenarios)
	r.Get("/scenarios/{id}", h.GetScenario)
	r.Get("/gap-types", h.ListGapTypes)
	r.Get("/gap-types/{id}", h.GetGapType)

	r.Route("/yield-statistics", func(r chi.Router) {
		r.Get("/", h.ListYieldStatistics)
		r.Get("/filter-data", h.ListYieldStatistics)
		r.Get("/provinces", h.YieldStatisticProvinces)
		r.Get("/years", h.YieldStatisticYears)
		r.Get("/summary", h.YieldStatisticSummary)
		r.Get("/{id}", h.GetYieldStatistic)
	})

	r.Route("/gap-statistics", func(r chi.Router) {
		r.Get("/", h.ListGapStatistics)
		r.Get("/filter-data", h.ListGapStatistics)
		r.Get("/provinces", h.GapStatisticProvinces)
		r.Get("/years", h.GapStatisticYears)
		r.Get("/summary", h.GapStatisticSummary)
		r.Get("/{id}", h.GetGapStatistic)
	})

	return r
}
