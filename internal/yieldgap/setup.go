package yieldgap

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownName is returned when a scenario or gap type is outside its vocabulary.
var ErrUnknownName = errors.New("name not in closed vocabulary")

// Migrate creates the tables and seeds the scenario and gap-type vocabularies.
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(
		&AdministrativeBoundary{},
		&Crop{},
		&YieldData{},
		&ParcelPoint{},
		&Variety{},
		&Scenario{},
		&GapType{},
		&YieldStatistics{},
		&GapStatistics{},
	); err != nil {
		return fmt.Errorf("auto-migrate yieldgap tables: %w", err)
	}

	if err := SeedVocabulary(d); err != nil {
		return err
	}

	log.Println("Yieldgap module initialized")
	return nil
}

// SeedVocabulary inserts any missing scenario and gap-type rows.
func SeedVocabulary(d *gorm.DB) error {
	for _, name := range ScenarioNames {
		s := Scenario{Name: name}
		if err := d.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
			return fmt.Errorf("seed scenario %q: %w", name, err)
		}
	}
	for _, name := range GapTypeNames {
		g := GapType{Name: name}
		if err := d.Clauses(clause.OnConflict{DoNothing: true}).Create(&g).Error; err != nil {
			return fmt.Errorf("seed gap type %q: %w", name, err)
		}
	}
	return nil
}
