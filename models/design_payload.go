package models

import (
	"cardpress/geometry"
)

// ElementType is the closed set of element variants a design payload may
// contain.
type ElementType string

const (
	ElementText    ElementType = "text"
	ElementImage   ElementType = "image"
	ElementShape   ElementType = "shape"
	ElementQR      ElementType = "qr"
	ElementBarcode ElementType = "barcode"
)

// AllElementTypes lists the allowed types in their canonical order.
var AllElementTypes = []ElementType{
	ElementText,
	ElementImage,
	ElementShape,
	ElementQR,
	ElementBarcode,
}

// Valid reports whether t is one of the five allowed element types.
func (t ElementType) Valid() bool {
	switch t {
	case ElementText, ElementImage, ElementShape, ElementQR, ElementBarcode:
		return true
	}
	return false
}

// Element is one positioned item on a card. Position and size are in
// millimeters relative to the card's top-left corner.
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	XMM      geometry.MM `json:"x_mm"`
	YMM      geometry.MM `json:"y_mm"`
	WidthMM  geometry.MM `json:"width_mm"`
	HeightMM geometry.MM `json:"height_mm"`
	Rotation float64     `json:"rotation"`
	Opacity  float64     `json:"opacity"`
	ZIndex   int         `json:"z_index"`

	Style    map[string]interface{} `json:"style,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Which of these is meaningful depends on Type: text elements carry a
	// template string in Text, qr/barcode elements a Text literal or a
	// MergeField, image elements a Source or the photo MergeField.
	Text       string `json:"text,omitempty"`
	MergeField string `json:"merge_field,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Bounds returns the element's rectangle in millimeter space.
func (e *Element) Bounds() geometry.Rect {
	return geometry.Rect{X: e.XMM, Y: e.YMM, W: e.WidthMM, H: e.HeightMM}
}

// DesignPayload is the visual description of one template version: an
// ordered element list plus free-form metadata and an optional background.
type DesignPayload struct {
	Elements   []Element              `json:"elements"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Background string                 `json:"background,omitempty"`
}
