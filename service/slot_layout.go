package service

import (
	"sort"

	"cardpress/geometry"
	"cardpress/models"
)

// Slot is one physical card position on a printed sheet.
type Slot struct {
	Index    int         `json:"index"`
	Row      int         `json:"row"`
	Col      int         `json:"col"`
	XMM      geometry.MM `json:"x_mm"`
	YMM      geometry.MM `json:"y_mm"`
	WidthMM  geometry.MM `json:"width_mm"`
	HeightMM geometry.MM `json:"height_mm"`
	Selected bool        `json:"selected"`
}

// SlotLayout computes slot grid geometry from a paper profile.
type SlotLayout struct{}

// NewSlotLayout creates a SlotLayout.
func NewSlotLayout() *SlotLayout {
	return &SlotLayout{}
}

// Layout derives every slot's position from the profile geometry and
// returns the slots plus the normalized (sorted) selected slot list.
// Flat index i maps to row i/columns and column i%columns; slots beyond
// rows*columns are never generated even when the profile's slot_count
// claims more. When selectedSlots is nil every slot is selected in
// sequence.
func (s *SlotLayout) Layout(profile *models.PaperProfile, selectedSlots []int) ([]Slot, []int, error) {
	total := profile.EffectiveSlots()

	normalized, err := s.NormalizeSelection(profile, selectedSlots)
	if err != nil {
		return nil, nil, err
	}

	selected := make(map[int]bool, len(normalized))
	for _, idx := range normalized {
		selected[idx] = true
	}

	slots := make([]Slot, 0, total)
	for i := 0; i < total; i++ {
		row := i / profile.Columns
		col := i % profile.Columns
		if row >= profile.Rows {
			break
		}
		slot := Slot{
			Index:    i,
			Row:      row,
			Col:      col,
			XMM:      profile.MarginLeft.Add(profile.CardWidth.Add(profile.HGap).MulInt(col)),
			YMM:      profile.MarginTop.Add(profile.CardHeight.Add(profile.VGap).MulInt(row)),
			WidthMM:  profile.CardWidth,
			HeightMM: profile.CardHeight,
		}
		if selectedSlots == nil {
			slot.Selected = true
		} else {
			slot.Selected = selected[i]
		}
		slots = append(slots, slot)
	}

	if selectedSlots == nil {
		normalized = make([]int, len(slots))
		for i := range slots {
			normalized[i] = i
		}
	}

	return slots, normalized, nil
}

// NormalizeSelection validates an explicit slot selection (duplicate-free,
// in range) and returns it sorted. A nil selection normalizes to nil.
func (s *SlotLayout) NormalizeSelection(profile *models.PaperProfile, selectedSlots []int) ([]int, error) {
	if selectedSlots == nil {
		return nil, nil
	}
	total := profile.EffectiveSlots()
	seen := make(map[int]bool, len(selectedSlots))
	normalized := make([]int, 0, len(selectedSlots))
	for _, idx := range selectedSlots {
		if idx < 0 || idx >= total {
			return nil, models.NewError(models.ErrorKindResolution,
				"selected slot %d is out of range; profile %q has slots 0-%d", idx, profile.Name, total-1)
		}
		if seen[idx] {
			return nil, models.NewError(models.ErrorKindResolution,
				"selected slot %d appears more than once", idx)
		}
		seen[idx] = true
		normalized = append(normalized, idx)
	}
	sort.Ints(normalized)
	return normalized, nil
}
