package service

import (
	"fmt"
	"html"
	"strings"

	"cardpress/geometry"
	"cardpress/models"
	"cardpress/utils"
)

// DocumentBuilder assembles whole-document markup for a single-card run or
// a sheet-of-slots run. Pages are emitted in item order; page sizing is
// done via @page rules matching the card or sheet millimeter dimensions
// with zero margin, so the PDF compiler needs no extra scaling.
type DocumentBuilder struct {
	renderer *ElementRenderer
}

// NewDocumentBuilder creates a DocumentBuilder using the given renderer
// for element fragments.
func NewDocumentBuilder(renderer *ElementRenderer) *DocumentBuilder {
	return &DocumentBuilder{renderer: renderer}
}

// BuildCardDocument renders one page per card at exactly the card format's
// dimensions.
func (d *DocumentBuilder) BuildCardDocument(format *models.CardFormat, background string, pages [][]ResolvedElement, guides models.GuideOptions) string {
	var b strings.Builder
	d.writeHead(&b, format.WidthMM, format.HeightMM)

	for i, elements := range pages {
		last := i == len(pages)-1
		fmt.Fprintf(&b, `<div class="page%s">`, pageBreakClass(last))
		d.writeCardContent(&b, format.WidthMM, format.HeightMM, background, elements, guides)
		b.WriteString(`</div>`)
	}

	b.WriteString(`</body></html>`)
	return b.String()
}

// BuildSheetDocument renders one page per physical sheet, imposing card
// content into the selected slots and leaving the rest empty.
func (d *DocumentBuilder) BuildSheetDocument(profile *models.PaperProfile, slots []Slot, pages []map[int][]ResolvedElement, background string, guides models.GuideOptions) string {
	var b strings.Builder
	d.writeHead(&b, profile.SheetWidth, profile.SheetHeight)

	slotByIndex := make(map[int]Slot, len(slots))
	for _, s := range slots {
		slotByIndex[s.Index] = s
	}

	for i, contents := range pages {
		last := i == len(pages)-1
		fmt.Fprintf(&b, `<div class="page%s">`, pageBreakClass(last))
		for _, slot := range slots {
			elements, filled := contents[slot.Index]
			if !filled {
				continue
			}
			fmt.Fprintf(&b,
				`<div class="slot" data-slot-index="%d" style="position:absolute;left:%smm;top:%smm;width:%smm;height:%smm;overflow:hidden;">`,
				slot.Index, slot.XMM, slot.YMM, slot.WidthMM, slot.HeightMM)
			d.writeCardContent(&b, slot.WidthMM, slot.HeightMM, background, elements, guides)
			b.WriteString(`</div>`)
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`</body></html>`)
	return b.String()
}

// writeHead emits the document shell with an @page rule sized to the
// physical page and zero margin.
func (d *DocumentBuilder) writeHead(b *strings.Builder, pageW, pageH geometry.MM) {
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>`)
	fmt.Fprintf(b, `@page{size:%smm %smm;margin:0;}`, pageW, pageH)
	b.WriteString(`html,body{margin:0;padding:0;}`)
	fmt.Fprintf(b, `.page{position:relative;width:%smm;height:%smm;overflow:hidden;}`, pageW, pageH)
	b.WriteString(`.page.break{page-break-after:always;}`)
	b.WriteString(`</style></head><body>`)
}

// writeCardContent emits one card's background, elements and optional
// guide overlays into an element of the given dimensions.
func (d *DocumentBuilder) writeCardContent(b *strings.Builder, w, h geometry.MM, background string, elements []ResolvedElement, guides models.GuideOptions) {
	fmt.Fprintf(b, `<div class="card" style="position:absolute;left:0;top:0;width:%smm;height:%smm;%s">`,
		w, h, backgroundCSS(background))
	for i := range elements {
		b.WriteString(d.renderer.FragmentHTML(&elements[i]))
	}
	writeGuides(b, guides)
	b.WriteString(`</div>`)
}

// writeGuides draws dashed bleed and safe-area boxes at the configured
// millimeter insets. The overlays sit above all elements.
func writeGuides(b *strings.Builder, guides models.GuideOptions) {
	if guides.ShowBleed {
		fmt.Fprintf(b,
			`<div class="guide guide-bleed" style="position:absolute;left:%smm;top:%smm;right:%smm;bottom:%smm;border:0.2mm dashed #e53935;z-index:9998;pointer-events:none;"></div>`,
			guides.BleedMM, guides.BleedMM, guides.BleedMM, guides.BleedMM)
	}
	if guides.ShowSafeArea {
		fmt.Fprintf(b,
			`<div class="guide guide-safe" style="position:absolute;left:%smm;top:%smm;right:%smm;bottom:%smm;border:0.2mm dashed #43a047;z-index:9999;pointer-events:none;"></div>`,
			guides.SafeAreaMM, guides.SafeAreaMM, guides.SafeAreaMM, guides.SafeAreaMM)
	}
}

// backgroundCSS interprets the payload background: colors pass through as
// background-color, anything else is treated as an image source.
func backgroundCSS(background string) string {
	if background == "" {
		return "background-color:#ffffff;"
	}
	if strings.HasPrefix(background, "#") || strings.HasPrefix(background, "rgb") {
		return "background-color:" + html.EscapeString(background) + ";"
	}
	if utils.IsDataURI(background) || utils.IsHTTPURL(background) || strings.HasPrefix(background, "/") {
		return fmt.Sprintf("background-image:url('%s');background-size:cover;", html.EscapeString(background))
	}
	return "background-color:" + html.EscapeString(background) + ";"
}

func pageBreakClass(last bool) string {
	if last {
		return ""
	}
	return " break"
}
