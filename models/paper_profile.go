package models

import (
	"fmt"

	"github.com/google/uuid"

	"cardpress/geometry"
)

// PaperProfile describes a physical sheet layout: a rows×columns grid of
// card slots with outer margins and inter-card gaps.
type PaperProfile struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	CardFormatID uuid.UUID   `json:"card_format_id"`
	SheetWidth   geometry.MM `json:"sheet_width_mm"`
	SheetHeight  geometry.MM `json:"sheet_height_mm"`
	CardWidth    geometry.MM `json:"card_width_mm"`
	CardHeight   geometry.MM `json:"card_height_mm"`
	MarginTop    geometry.MM `json:"margin_top_mm"`
	MarginRight  geometry.MM `json:"margin_right_mm"`
	MarginBottom geometry.MM `json:"margin_bottom_mm"`
	MarginLeft   geometry.MM `json:"margin_left_mm"`
	HGap         geometry.MM `json:"horizontal_gap_mm"`
	VGap         geometry.MM `json:"vertical_gap_mm"`
	Columns      int         `json:"columns"`
	Rows         int         `json:"rows"`
	// SlotCount is advisory; slot geometry is always derived from
	// Rows*Columns and never exceeds it.
	SlotCount int `json:"slot_count"`
}

// EffectiveSlots returns the number of slots actually generated. The
// stored SlotCount may claim more than the grid holds; slots beyond
// rows*columns are never produced.
func (p *PaperProfile) EffectiveSlots() int {
	grid := p.Rows * p.Columns
	if p.SlotCount > 0 && p.SlotCount < grid {
		return p.SlotCount
	}
	return grid
}

// Validate checks the sheet geometry for internal consistency.
func (p *PaperProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("paper profile name is required")
	}
	if p.Columns <= 0 || p.Rows <= 0 {
		return fmt.Errorf("paper profile needs at least one row and one column")
	}
	if !p.SheetWidth.IsPositive() || !p.SheetHeight.IsPositive() {
		return fmt.Errorf("sheet dimensions must be positive")
	}
	if !p.CardWidth.IsPositive() || !p.CardHeight.IsPositive() {
		return fmt.Errorf("card dimensions must be positive")
	}
	for _, m := range []struct {
		name string
		v    geometry.MM
	}{
		{"margin_top", p.MarginTop},
		{"margin_right", p.MarginRight},
		{"margin_bottom", p.MarginBottom},
		{"margin_left", p.MarginLeft},
		{"horizontal_gap", p.HGap},
		{"vertical_gap", p.VGap},
	} {
		if m.v.IsNegative() {
			return fmt.Errorf("%s cannot be negative", m.name)
		}
	}

	// The full grid must fit on the sheet.
	usedW := p.MarginLeft.Add(p.MarginRight).
		Add(p.CardWidth.MulInt(p.Columns)).
		Add(p.HGap.MulInt(p.Columns - 1))
	if usedW.Cmp(p.SheetWidth) > 0 {
		return fmt.Errorf("grid width %smm exceeds sheet width %smm", usedW, p.SheetWidth)
	}
	usedH := p.MarginTop.Add(p.MarginBottom).
		Add(p.CardHeight.MulInt(p.Rows)).
		Add(p.VGap.MulInt(p.Rows - 1))
	if usedH.Cmp(p.SheetHeight) > 0 {
		return fmt.Errorf("grid height %smm exceeds sheet height %smm", usedH, p.SheetHeight)
	}
	return nil
}

// MatchesFormat reports whether the profile's card dimensions equal the
// given card format's. A template version may only pair with a profile
// that shares its format.
func (p *PaperProfile) MatchesFormat(f *CardFormat) bool {
	if p.CardFormatID != uuid.Nil && f.ID != uuid.Nil && p.CardFormatID != f.ID {
		return false
	}
	return p.CardWidth.Cmp(f.WidthMM) == 0 && p.CardHeight.Cmp(f.HeightMM) == 0
}
