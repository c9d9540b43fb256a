package geometry

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MM is a length in millimeters with exact decimal arithmetic.
// Card and sheet dimensions are specified to two decimal places, so all
// layout math is done on decimals and only converted to float at the
// PDF/CSS boundary.
type MM struct {
	dec decimal.Decimal
}

// ZeroMM is the zero length.
var ZeroMM = MM{}

// MMFromString parses a decimal millimeter value like "85.60".
func MMFromString(s string) (MM, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return MM{}, fmt.Errorf("invalid millimeter value %q: %w", s, err)
	}
	return MM{dec: d}, nil
}

// MMFromFloat converts a float to millimeters.
func MMFromFloat(f float64) MM {
	return MM{dec: decimal.NewFromFloat(f)}
}

// MMFromInt converts an integer to millimeters.
func MMFromInt(n int) MM {
	return MM{dec: decimal.NewFromInt(int64(n))}
}

// Add returns m + other.
func (m MM) Add(other MM) MM {
	return MM{dec: m.dec.Add(other.dec)}
}

// Sub returns m - other.
func (m MM) Sub(other MM) MM {
	return MM{dec: m.dec.Sub(other.dec)}
}

// MulInt returns m * n.
func (m MM) MulInt(n int) MM {
	return MM{dec: m.dec.Mul(decimal.NewFromInt(int64(n)))}
}

// Cmp compares two lengths: -1 if m < other, 0 if equal, +1 if m > other.
func (m MM) Cmp(other MM) int {
	return m.dec.Cmp(other.dec)
}

// IsNegative reports whether m < 0.
func (m MM) IsNegative() bool {
	return m.dec.IsNegative()
}

// IsPositive reports whether m > 0.
func (m MM) IsPositive() bool {
	return m.dec.IsPositive()
}

// IsZero reports whether m == 0.
func (m MM) IsZero() bool {
	return m.dec.IsZero()
}

// String renders the value with exactly two decimal places, e.g. "105.00".
func (m MM) String() string {
	return m.dec.StringFixed(2)
}

// Float64 returns the value as a float64.
func (m MM) Float64() float64 {
	f, _ := m.dec.Float64()
	return f
}

// Inches converts millimeters to inches (1 in = 25.4 mm). Chrome's
// PrintToPDF takes paper dimensions in inches.
func (m MM) Inches() float64 {
	f, _ := m.dec.Div(decimal.NewFromFloat(25.4)).Float64()
	return f
}

// Pixels96DPI converts millimeters to CSS pixels at 96 DPI.
func (m MM) Pixels96DPI() float64 {
	f, _ := m.dec.Mul(decimal.NewFromInt(96)).Div(decimal.NewFromFloat(25.4)).Float64()
	return f
}

// MarshalJSON encodes the value as a fixed two-decimal string so that
// serialized payloads are byte-for-byte deterministic.
func (m MM) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *MM) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid millimeter value %s: %w", string(data), err)
	}
	m.dec = d
	return nil
}

// Rect is an axis-aligned rectangle in millimeter space.
type Rect struct {
	X MM
	Y MM
	W MM
	H MM
}

// FitsWithin reports whether the rectangle lies entirely inside a canvas
// of the given dimensions anchored at the origin.
func (r Rect) FitsWithin(canvasW, canvasH MM) bool {
	if r.X.IsNegative() || r.Y.IsNegative() {
		return false
	}
	if r.X.Add(r.W).Cmp(canvasW) > 0 {
		return false
	}
	if r.Y.Add(r.H).Cmp(canvasH) > 0 {
		return false
	}
	return true
}

// ExceedsWidth reports whether x + w > canvasW.
func (r Rect) ExceedsWidth(canvasW MM) bool {
	return r.X.Add(r.W).Cmp(canvasW) > 0
}

// ExceedsHeight reports whether y + h > canvasH.
func (r Rect) ExceedsHeight(canvasH MM) bool {
	return r.Y.Add(r.H).Cmp(canvasH) > 0
}
