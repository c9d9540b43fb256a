package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"cardpress/geometry"
	"cardpress/models"
	"cardpress/registry"
)

// allowedTopLevelKeys are the only keys a design payload object may carry.
var allowedTopLevelKeys = map[string]bool{
	"elements":   true,
	"metadata":   true,
	"background": true,
}

// requiredElementKeys must all be present on every element.
var requiredElementKeys = []string{"id", "type", "x_mm", "y_mm", "width_mm", "height_mm"}

// allowedElementKeys is the full set an element may carry.
var allowedElementKeys = map[string]bool{
	"id": true, "type": true,
	"x_mm": true, "y_mm": true, "width_mm": true, "height_mm": true,
	"rotation": true, "opacity": true, "z_index": true,
	"style": true, "metadata": true,
	"text": true, "merge_field": true, "source": true,
}

// PayloadValidator checks a raw design payload against the schema rules
// and the canvas bounds, producing a typed DesignPayload on success and a
// field-path-keyed error map on failure.
type PayloadValidator struct{}

// NewPayloadValidator creates a PayloadValidator.
func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{}
}

// Validate applies the schema rules in order. Per element, the first
// failing structural rule wins and later rules are skipped for that
// element; independent elements are always all checked.
func (pv *PayloadValidator) Validate(raw map[string]interface{}, canvasW, canvasH geometry.MM) (*models.DesignPayload, models.ValidationErrors) {
	errs := models.ValidationErrors{}

	if raw == nil {
		errs.Add("design_payload", "payload must be an object")
		return nil, errs
	}

	// Rule 1: top level keys are closed.
	for _, key := range sortedKeys(raw) {
		if !allowedTopLevelKeys[key] {
			errs.Add("design_payload."+key, fmt.Sprintf("unknown key %q; allowed keys are elements, metadata, background", key))
		}
	}

	rawElements, ok := raw["elements"]
	if !ok {
		errs.Add("design_payload.elements", "elements is required")
		return nil, errs
	}
	elementList, ok := rawElements.([]interface{})
	if !ok {
		errs.Add("design_payload.elements", "elements must be a list")
		return nil, errs
	}

	payload := &models.DesignPayload{}
	if bg, ok := raw["background"].(string); ok {
		payload.Background = bg
	}
	if md, ok := raw["metadata"].(map[string]interface{}); ok {
		payload.Metadata = md
	}

	for i, rawEl := range elementList {
		path := fmt.Sprintf("design_payload.elements[%d]", i)
		el, elErr := pv.validateElement(rawEl, path, canvasW, canvasH)
		if elErr != nil {
			for p, msgs := range elErr {
				for _, m := range msgs {
					errs.Add(p, m)
				}
			}
			continue
		}
		payload.Elements = append(payload.Elements, *el)
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return payload, nil
}

// ValidateJSON is a convenience wrapper decoding a JSON document first.
func (pv *PayloadValidator) ValidateJSON(data []byte, canvasW, canvasH geometry.MM) (*models.DesignPayload, models.ValidationErrors) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		errs := models.ValidationErrors{}
		errs.Add("design_payload", fmt.Sprintf("invalid JSON: %v", err))
		return nil, errs
	}
	return pv.Validate(raw, canvasW, canvasH)
}

// validateElement applies rules 2-6 to one element. It returns either a
// parsed element or the errors for the first failing rule.
func (pv *PayloadValidator) validateElement(rawEl interface{}, path string, canvasW, canvasH geometry.MM) (*models.Element, models.ValidationErrors) {
	errs := models.ValidationErrors{}

	// Rule 2: structure.
	obj, ok := rawEl.(map[string]interface{})
	if !ok {
		errs.Add(path, "element must be an object")
		return nil, errs
	}
	for _, key := range requiredElementKeys {
		if _, present := obj[key]; !present {
			errs.Add(path+"."+key, fmt.Sprintf("%s is required", key))
		}
	}
	if errs.HasErrors() {
		return nil, errs
	}
	for _, key := range sortedKeys(obj) {
		if !allowedElementKeys[key] {
			errs.Add(path+"."+key, fmt.Sprintf("unknown key %q", key))
		}
	}
	if errs.HasErrors() {
		return nil, errs
	}

	id, ok := obj["id"].(string)
	if !ok || id == "" {
		errs.Add(path+".id", "id must be a non-empty string")
		return nil, errs
	}

	// Rule 3: type.
	typeStr, ok := obj["type"].(string)
	elType := models.ElementType(typeStr)
	if !ok || !elType.Valid() {
		errs.Add(path+".type", fmt.Sprintf("type must be one of text, image, shape, qr, barcode; got %v", obj["type"]))
		return nil, errs
	}

	// Rule 4: numeric fields.
	el := &models.Element{ID: id, Type: elType, Opacity: 1}
	for _, f := range []struct {
		key    string
		target *geometry.MM
	}{
		{"x_mm", &el.XMM},
		{"y_mm", &el.YMM},
		{"width_mm", &el.WidthMM},
		{"height_mm", &el.HeightMM},
	} {
		mm, err := parseMM(obj[f.key])
		if err != nil {
			errs.Add(path+"."+f.key, fmt.Sprintf("%s must be a decimal number", f.key))
			continue
		}
		*f.target = mm
	}
	if errs.HasErrors() {
		return nil, errs
	}
	if el.XMM.IsNegative() {
		errs.Add(path+".x_mm", "x_mm cannot be negative")
	}
	if el.YMM.IsNegative() {
		errs.Add(path+".y_mm", "y_mm cannot be negative")
	}
	if !el.WidthMM.IsPositive() {
		errs.Add(path+".width_mm", "width_mm must be strictly positive")
	}
	if !el.HeightMM.IsPositive() {
		errs.Add(path+".height_mm", "height_mm must be strictly positive")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	if v, present := obj["rotation"]; present {
		f, err := parseFloat(v)
		if err != nil {
			errs.Add(path+".rotation", "rotation must be a number of degrees")
			return nil, errs
		}
		el.Rotation = f
	}
	if v, present := obj["opacity"]; present {
		f, err := parseFloat(v)
		if err != nil || f < 0 || f > 1 {
			errs.Add(path+".opacity", "opacity must be a number between 0 and 1")
			return nil, errs
		}
		el.Opacity = f
	}
	if v, present := obj["z_index"]; present {
		n, err := parseInt(v)
		if err != nil {
			errs.Add(path+".z_index", "z_index must be an integer")
			return nil, errs
		}
		el.ZIndex = n
	}
	if v, present := obj["style"]; present {
		style, ok := v.(map[string]interface{})
		if !ok {
			errs.Add(path+".style", "style must be an object")
			return nil, errs
		}
		el.Style = style
	}
	if v, present := obj["metadata"]; present {
		md, ok := v.(map[string]interface{})
		if !ok {
			errs.Add(path+".metadata", "metadata must be an object")
			return nil, errs
		}
		el.Metadata = md
	}
	for _, f := range []struct {
		key    string
		target *string
	}{
		{"text", &el.Text},
		{"merge_field", &el.MergeField},
		{"source", &el.Source},
	} {
		if v, present := obj[f.key]; present {
			s, ok := v.(string)
			if !ok {
				errs.Add(path+"."+f.key, fmt.Sprintf("%s must be a string", f.key))
				return nil, errs
			}
			*f.target = s
		}
	}

	// Rule 5: bounds.
	bounds := el.Bounds()
	if bounds.ExceedsWidth(canvasW) {
		errs.Add(path, fmt.Sprintf("element exceeds canvas width bounds (%s + %s > %s)", el.XMM, el.WidthMM, canvasW))
	}
	if bounds.ExceedsHeight(canvasH) {
		errs.Add(path, fmt.Sprintf("element exceeds canvas height bounds (%s + %s > %s)", el.YMM, el.HeightMM, canvasH))
	}
	if errs.HasErrors() {
		return nil, errs
	}

	// Rule 6: merge-field closure.
	if el.MergeField != "" && !registry.IsAllowed(el.MergeField) {
		errs.Add(path+".merge_field", registry.UnknownFieldError(el.MergeField).Error())
	}
	for _, key := range extractTokens(el.Text) {
		if !registry.IsAllowed(key) {
			errs.Add(path+".text", registry.UnknownFieldError(key).Error())
		}
	}
	if errs.HasErrors() {
		return nil, errs
	}

	return el, nil
}

func parseMM(v interface{}) (geometry.MM, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return geometry.MM{}, fmt.Errorf("not a finite number")
		}
		return geometry.MMFromFloat(n), nil
	case json.Number:
		return geometry.MMFromString(n.String())
	case string:
		return geometry.MMFromString(n)
	case int:
		return geometry.MMFromInt(n), nil
	}
	return geometry.MM{}, fmt.Errorf("not a number: %v", v)
}

func parseFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func parseInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
