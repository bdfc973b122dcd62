package yieldgap

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AverageYear marks a yield row that holds the multi-year average.
const AverageYear = 9999

// AdministrativeBoundary is a country, region, province or commune outline.
type AdministrativeBoundary struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Level        string    `gorm:"size:50;not null;index" json:"level"` // country, region, province, commune
	Code         string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	GeometryJSON *string   `gorm:"type:text" json:"geometry_json"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AdministrativeBoundary) TableName() string {
	return "administrative_boundaries"
}

// Crop is a cultivated species.
type Crop struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	ScientificName string    `gorm:"size:200" json:"scientific_name"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Crop) TableName() string {
	return "crops"
}

// YieldData holds yield levels and gap terms (t/ha) for one boundary, crop and year.
type YieldData struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	BoundaryID uint `gorm:"not null;uniqueIndex:idx_yield_boundary_crop_year" json:"region"`
	CropID     uint `gorm:"not null;uniqueIndex:idx_yield_boundary_crop_year" json:"crop"`
	Year       int  `gorm:"not null;uniqueIndex:idx_yield_boundary_crop_year;index" json:"year"`

	ActualYield          *float64 `json:"actual_yield"`           // Y_a
	PotentialYield       *float64 `json:"potential_yield"`        // Y_p
	WaterLimitedYield    *float64 `json:"water_limited_yield"`    // Y_w
	NutrientLimitedYield *float64 `json:"nutrient_limited_yield"` // Y_n, calibrated
	UnfertilizedYield    *float64 `json:"unfertilized_yield"`     // Y_nf

	YieldGap        *float64 `json:"yield_gap"` // Y_p - Y_a
	YieldGapPercent *float64 `json:"yield_gap_percent"`

	WaterGap              *float64 `json:"water_gap"`
	NutrientGap           *float64 `json:"nutrient_gap"`
	ManagementGap         *float64 `json:"management_gap"`
	FertilizerResponseGap *float64 `json:"fertilizer_response_gap"`

	DataSource string    `gorm:"size:200" json:"data_source"`
	CreatedAt  time.Time `json:"created_at"`

	Boundary *AdministrativeBoundary `gorm:"foreignKey:BoundaryID" json:"-"`
	Crop     *Crop                   `gorm:"foreignKey:CropID" json:"-"`
}

func (YieldData) TableName() string {
	return "yield_data"
}

// ParcelPoint is one surveyed field observation.
type ParcelPoint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ParcelID   string    `gorm:"size:100;not null;uniqueIndex:idx_parcel_year" json:"parcel_id"`
	Province   string    `gorm:"size:100;not null;index" json:"province"`
	Variety    string    `gorm:"size:100;not null;index" json:"variety"`
	Year       int       `gorm:"not null;uniqueIndex:idx_parcel_year" json:"year"`
	YieldPerHa *float64  `json:"yield_per_ha"`
	YieldTotal *float64  `json:"yield_total"`
	Area       *float64  `json:"area"`
	X          float64   `gorm:"not null" json:"x"` // longitude
	Y          float64   `gorm:"not null" json:"y"` // latitude
	CreatedAt  time.Time `json:"created_at"`
}

func (ParcelPoint) TableName() string {
	return "parcel_points"
}

// Variety is a wheat cultivar.
type Variety struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Variety) TableName() string {
	return "varieties"
}

// Scenario names form a closed vocabulary.
var ScenarioNames = []string{
	"Potential",
	"Water Limited",
	"Calibrated",
	"Unfertilized",
	"Sowing Date",
	"Observed",
}

// Scenario is a simulated or observed yield condition.
type Scenario struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Scenario) TableName() string {
	return "scenarios"
}

func (s *Scenario) BeforeSave(tx *gorm.DB) error {
	if !contains(ScenarioNames, s.Name) {
		return fmt.Errorf("%w: scenario %q", ErrUnknownName, s.Name)
	}
	return nil
}

// GapTypeNames form a closed vocabulary.
var GapTypeNames = []string{
	"Total Exploitable Yield Gap",
	"Water Limitation Gap",
	"Calibrated vs Water Limited Gap",
	"Fertilizer Response Gap",
	"Sowing Date Impact Gap",
}

// GapType is a named decomposition term.
type GapType struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (GapType) TableName() string {
	return "gap_types"
}

func (g *GapType) BeforeSave(tx *gorm.DB) error {
	if !contains(GapTypeNames, g.Name) {
		return fmt.Errorf("%w: gap type %q", ErrUnknownName, g.Name)
	}
	return nil
}

// Distribution is the descriptive summary shared by both statistics tables.
type Distribution struct {
	Count  int      `gorm:"not null;default:0" json:"count"`
	Mean   float64  `gorm:"not null" json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"q25"`
	Median *float64 `json:"median"`
	Q75    *float64 `json:"q75"`
	Max    *float64 `json:"max"`
}

// YieldStatistics summarises yields per variety, province, year and scenario.
// Nil variety, province or year means "all".
type YieldStatistics struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	VarietyID  *uint   `gorm:"index" json:"variety"`
	Province   *string `gorm:"size:100;index" json:"province"`
	Year       *int    `gorm:"index" json:"year"`
	ScenarioID *uint   `gorm:"index" json:"scenario"`
	Distribution
	DataSource string    `gorm:"size:100;default:'Excel Import'" json:"data_source"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Variety  *Variety  `gorm:"foreignKey:VarietyID" json:"-"`
	Scenario *Scenario `gorm:"foreignKey:ScenarioID" json:"-"`
}

func (YieldStatistics) TableName() string {
	return "yield_statistics"
}

// GapStatistics summarises gap values per variety, province, year and gap type.
type GapStatistics struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	VarietyID *uint   `gorm:"index" json:"variety"`
	Province  *string `gorm:"size:100;index" json:"province"`
	Year      *int    `gorm:"index" json:"year"`
	GapTypeID *uint   `gorm:"index" json:"gap_type"`
	Distribution
	DataSource string    `gorm:"size:100;default:'Excel Import'" json:"data_source"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Variety *Variety `gorm:"foreignKey:VarietyID" json:"-"`
	GapType *GapType `gorm:"foreignKey:GapTypeID" json:"-"`
}

func (GapStatistics) TableName() string {
	return "gap_statistics"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
