package ingest

import "math"

// Scenario names read from the yield workbook.
const (
	ScenarioPotential    = "Potential"
	ScenarioWaterLimited = "Water Limited"
	ScenarioCalibrated   = "Calibrated"
	ScenarioUnfertilized = "Unfertilized"
	ScenarioObserved     = "Observed"
)

// ScenarioValues maps scenario name to mean yield (t/ha) for one province and year.
type ScenarioValues map[string]float64

// Levels are the five yield levels of the decomposition, in t/ha.
type Levels struct {
	Potential       float64 // Y_p
	WaterLimited    float64 // Y_w
	NutrientLimited float64 // Y_n
	Actual          float64 // Y_a
	Unfertilized    float64 // Y_nf
}

// Decomposition is Levels plus the derived gaps. Every term is non-negative.
type Decomposition struct {
	Levels
	TotalGap           float64
	GapPercent         float64
	WaterGap           float64
	NutrientGap        float64
	ManagementGap      float64
	FertilizerResponse float64
}

func (v ScenarioValues) lookup(name string, fallback float64) float64 {
	if x, ok := v[name]; ok {
		return x
	}
	return fallback
}

func (v ScenarioValues) has(names ...string) bool {
	for _, n := range names {
		if _, ok := v[n]; !ok {
			return false
		}
	}
	return true
}

// YearLevels builds levels for a single year, where Calibrated stands in for
// the observed yield. ok is false without both Potential and Calibrated.
func YearLevels(v ScenarioValues) (Levels, bool) {
	if !v.has(ScenarioPotential, ScenarioCalibrated) {
		return Levels{}, false
	}
	yp := clamp(v[ScenarioPotential])
	yw := clamp(v.lookup(ScenarioWaterLimited, yp))
	yn := clamp(v[ScenarioCalibrated])
	return Levels{
		Potential:       yp,
		WaterLimited:    yw,
		NutrientLimited: yn,
		Actual:          yn,
		Unfertilized:    clamp(v.lookup(ScenarioUnfertilized, 0)),
	}, true
}

// AverageLevels builds levels for the multi-year average, where Observed is the
// actual yield. ok is false without both Potential and Observed.
func AverageLevels(v ScenarioValues) (Levels, bool) {
	if !v.has(ScenarioPotential, ScenarioObserved) {
		return Levels{}, false
	}
	yp := clamp(v[ScenarioPotential])
	yw := clamp(v.lookup(ScenarioWaterLimited, yp))
	yn := clamp(v.lookup(ScenarioCalibrated, yw))
	ya := clamp(v[ScenarioObserved])
	return Levels{
		Potential:       yp,
		WaterLimited:    yw,
		NutrientLimited: yn,
		Actual:          ya,
		Unfertilized:    clamp(v.lookup(ScenarioUnfertilized, ya)),
	}, true
}

// Decompose clamps l and derives the gap terms.
func Decompose(l Levels) Decomposition {
	l = Levels{
		Potential:       clamp(l.Potential),
		WaterLimited:    clamp(l.WaterLimited),
		NutrientLimited: clamp(l.NutrientLimited),
		Actual:          clamp(l.Actual),
		Unfertilized:    clamp(l.Unfertilized),
	}

	d := Decomposition{
		Levels:             l,
		TotalGap:           clamp(l.Potential - l.Actual),
		WaterGap:           clamp(l.Potential - l.WaterLimited),
		NutrientGap:        clamp(l.WaterLimited - l.NutrientLimited),
		ManagementGap:      clamp(l.NutrientLimited - l.Actual),
		FertilizerResponse: clamp(l.Actual - l.Unfertilized),
	}
	if l.Potential > 0 {
		d.GapPercent = d.TotalGap / l.Potential * 100
	}
	return d
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
