package models

import (
	"fmt"

	"github.com/google/uuid"

	"cardpress/geometry"
)

// CardFormat is a named physical card size in millimeters. Dimensions are
// immutable once the format is referenced by a published template version.
type CardFormat struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	WidthMM  geometry.MM `json:"width_mm"`
	HeightMM geometry.MM `json:"height_mm"`
}

// Validate checks that both dimensions are strictly positive.
func (f *CardFormat) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("card format name is required")
	}
	if !f.WidthMM.IsPositive() {
		return fmt.Errorf("card format width must be positive, got %s", f.WidthMM)
	}
	if !f.HeightMM.IsPositive() {
		return fmt.Errorf("card format height must be positive, got %s", f.HeightMM)
	}
	return nil
}
