package service

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cardpress/geometry"
	"cardpress/models"
	"cardpress/registry"
	"cardpress/utils"
)

// ResolvedElement is one design element after merge-field resolution,
// ready to be emitted as markup. Field order matters: the struct is
// serialized into preview payloads and must stay byte-for-byte
// deterministic.
type ResolvedElement struct {
	ID       string             `json:"id"`
	Type     models.ElementType `json:"type"`
	XMM      geometry.MM        `json:"x_mm"`
	YMM      geometry.MM        `json:"y_mm"`
	WidthMM  geometry.MM        `json:"width_mm"`
	HeightMM geometry.MM        `json:"height_mm"`
	Rotation float64            `json:"rotation"`
	Opacity  float64            `json:"opacity"`
	ZIndex   int                `json:"z_index"`
	// RenderOrder is the element's 0-based position in the deterministic
	// render sort, exposed for golden-output testing.
	RenderOrder int                    `json:"render_order"`
	Style       map[string]interface{} `json:"style,omitempty"`
	// Text is the token-substituted text (text elements).
	Text string `json:"text,omitempty"`
	// Source is the resolved image source (image/qr/barcode elements).
	Source string `json:"source,omitempty"`
	// Value is the raw value encoded into a QR or barcode symbol.
	Value string `json:"value,omitempty"`
}

// ElementRenderer resolves validated design payloads against a merge
// context and emits positioned markup fragments.
type ElementRenderer struct {
	logger *zap.SugaredLogger
}

// NewElementRenderer creates an ElementRenderer.
func NewElementRenderer(logger *zap.SugaredLogger) *ElementRenderer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ElementRenderer{logger: logger}
}

// Resolve turns the payload's elements into resolved elements in render
// order. The ordering is (z_index asc, id asc, original index asc) and is
// stable across repeated calls with identical input.
func (r *ElementRenderer) Resolve(payload *models.DesignPayload, context map[string]string, requestBaseURL string) ([]ResolvedElement, error) {
	indices := make([]int, len(payload.Elements))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ea, eb := &payload.Elements[indices[a]], &payload.Elements[indices[b]]
		if ea.ZIndex != eb.ZIndex {
			return ea.ZIndex < eb.ZIndex
		}
		if ea.ID != eb.ID {
			return ea.ID < eb.ID
		}
		return indices[a] < indices[b]
	})

	resolved := make([]ResolvedElement, 0, len(indices))
	for order, idx := range indices {
		el := &payload.Elements[idx]
		re, err := r.resolveOne(el, context, requestBaseURL)
		if err != nil {
			return nil, err
		}
		re.RenderOrder = order
		resolved = append(resolved, *re)
	}
	return resolved, nil
}

func (r *ElementRenderer) resolveOne(el *models.Element, context map[string]string, requestBaseURL string) (*ResolvedElement, error) {
	re := &ResolvedElement{
		ID:       el.ID,
		Type:     el.Type,
		XMM:      el.XMM,
		YMM:      el.YMM,
		WidthMM:  el.WidthMM,
		HeightMM: el.HeightMM,
		Rotation: el.Rotation,
		Opacity:  el.Opacity,
		ZIndex:   el.ZIndex,
		Style:    el.Style,
	}

	switch el.Type {
	case models.ElementText:
		re.Text = substituteTokens(el.Text, context)
		if re.Text == "" && el.MergeField != "" {
			re.Text = context[el.MergeField]
		}

	case models.ElementImage:
		re.Source = r.resolveImageSource(el, context, requestBaseURL)

	case models.ElementShape:
		// Shapes carry style only.

	case models.ElementQR:
		re.Value = resolveCodeValue(el, context)
		src, err := encodeQRDataURI(re.Value)
		if err != nil {
			return nil, models.WrapError(models.ErrorKindExecution, err, "element %s: QR encoding failed", el.ID)
		}
		re.Source = src

	case models.ElementBarcode:
		re.Value = resolveCodeValue(el, context)
		src, err := encodeBarcodeDataURI(re.Value)
		if err != nil {
			// A value Code 128 cannot carry degrades to the placeholder
			// glyph instead of failing the render.
			r.logger.Warnw("⚠️ barcode encoding failed, using placeholder", "element_id", el.ID, "error", err)
			src = ""
		}
		re.Source = src

	default:
		return nil, models.NewError(models.ErrorKindSchema, "element %s has unknown type %q", el.ID, el.Type)
	}

	return re, nil
}

// resolveImageSource resolves an image element's source. The photo merge
// field resolves straight from context (already a data URI or empty);
// other sources get token substitution and relative paths are absolutized
// against the request base URL.
func (r *ElementRenderer) resolveImageSource(el *models.Element, context map[string]string, requestBaseURL string) string {
	if el.MergeField != "" {
		if el.MergeField == registry.PhotoFieldKey {
			return context[registry.PhotoFieldKey]
		}
		return context[el.MergeField]
	}
	src := substituteTokens(el.Source, context)
	if src == "" || utils.IsDataURI(src) || utils.IsHTTPURL(src) {
		return src
	}
	if strings.HasPrefix(src, "/") && requestBaseURL != "" {
		return strings.TrimRight(requestBaseURL, "/") + src
	}
	return src
}

// resolveCodeValue picks the value a QR/barcode element encodes: its merge
// field when set, otherwise its literal text with tokens substituted.
func resolveCodeValue(el *models.Element, context map[string]string) string {
	if el.MergeField != "" {
		return context[el.MergeField]
	}
	return substituteTokens(el.Text, context)
}

// FragmentHTML renders one resolved element as an absolutely positioned
// markup fragment. All user-controlled content is escaped here, at the
// markup boundary.
func (r *ElementRenderer) FragmentHTML(re *ResolvedElement) string {
	var b strings.Builder

	b.WriteString(`<div class="el el-`)
	b.WriteString(string(re.Type))
	b.WriteString(`" data-element-id="`)
	b.WriteString(html.EscapeString(re.ID))
	b.WriteString(`" style="`)
	b.WriteString(r.elementCSS(re))
	b.WriteString(`">`)

	switch re.Type {
	case models.ElementText:
		b.WriteString(html.EscapeString(re.Text))
	case models.ElementImage, models.ElementQR:
		if re.Source != "" {
			b.WriteString(`<img src="`)
			b.WriteString(html.EscapeString(re.Source))
			b.WriteString(`" style="width:100%;height:100%;object-fit:contain;" alt=""/>`)
		} else {
			b.WriteString(`<div class="placeholder" style="width:100%;height:100%;border:0.2mm dashed #999;"></div>`)
		}
	case models.ElementBarcode:
		if re.Source != "" {
			b.WriteString(`<img src="`)
			b.WriteString(html.EscapeString(re.Source))
			b.WriteString(`" style="width:100%;height:100%;object-fit:fill;" alt=""/>`)
		} else {
			// Placeholder glyph pattern when no value could be encoded.
			b.WriteString(`<div class="placeholder" style="width:100%;height:100%;background:repeating-linear-gradient(90deg,#000 0,#000 2%,#fff 2%,#fff 5%);"></div>`)
		}
	case models.ElementShape:
		// The shape itself is the styled div.
	}

	b.WriteString(`</div>`)
	return b.String()
}

// elementCSS builds the inline style for an element: deterministic order,
// positional properties first, then the free-form style map sorted by key.
func (r *ElementRenderer) elementCSS(re *ResolvedElement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "position:absolute;left:%smm;top:%smm;width:%smm;height:%smm;",
		re.XMM, re.YMM, re.WidthMM, re.HeightMM)
	fmt.Fprintf(&b, "z-index:%d;", re.ZIndex)
	if re.Opacity != 1 {
		b.WriteString("opacity:" + strconv.FormatFloat(re.Opacity, 'f', -1, 64) + ";")
	}
	if re.Rotation != 0 {
		b.WriteString("transform:rotate(" + strconv.FormatFloat(re.Rotation, 'f', -1, 64) + "deg);transform-origin:center center;")
	}
	b.WriteString("box-sizing:border-box;overflow:hidden;")

	keys := make([]string, 0, len(re.Style))
	for k := range re.Style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(html.EscapeString(cssProperty(k)))
		b.WriteString(":")
		b.WriteString(html.EscapeString(styleValue(re.Style[k])))
		b.WriteString(";")
	}
	return b.String()
}

// cssProperty maps payload style keys (snake_case) to CSS property names.
func cssProperty(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func styleValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
