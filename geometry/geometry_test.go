package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMM(t *testing.T, s string) MM {
	t.Helper()
	m, err := MMFromString(s)
	require.NoError(t, err)
	return m
}

func TestMMArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  MM
		want string
	}{
		{
			name: "second column x on a 2x5 sheet",
			got:  mustMM(t, "19.40").Add(mustMM(t, "85.60").Add(ZeroMM).MulInt(1)),
			want: "105.00",
		},
		{
			name: "margin plus card plus gap",
			got:  mustMM(t, "10.00").Add(mustMM(t, "53.98").Add(mustMM(t, "2.00")).MulInt(2)),
			want: "121.96",
		},
		{
			name: "subtraction keeps two decimals",
			got:  mustMM(t, "85.60").Sub(mustMM(t, "0.60")),
			want: "85.00",
		},
		{
			name: "float entry rounds cleanly",
			got:  MMFromFloat(53.98),
			want: "53.98",
		},
		{
			name: "integer entry",
			got:  MMFromInt(210),
			want: "210.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.String())
		})
	}
}

func TestMMComparisons(t *testing.T) {
	a := mustMM(t, "85.60")
	b := mustMM(t, "85.61")
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 0, a.Cmp(mustMM(t, "85.6")))
	assert.Equal(t, 1, b.Cmp(a))

	assert.True(t, mustMM(t, "-1").IsNegative())
	assert.True(t, mustMM(t, "0.01").IsPositive())
	assert.True(t, ZeroMM.IsZero())
	assert.False(t, ZeroMM.IsPositive())
}

func TestMMInches(t *testing.T) {
	assert.InDelta(t, 1.0, mustMM(t, "25.4").Inches(), 1e-9)
	assert.InDelta(t, 3.370078740157480, mustMM(t, "85.60").Inches(), 1e-9)
}

func TestMMJSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(mustMM(t, "105"))
	require.NoError(t, err)
	assert.Equal(t, `"105.00"`, string(out))

	var fromString MM
	require.NoError(t, json.Unmarshal([]byte(`"85.60"`), &fromString))
	var fromNumber MM
	require.NoError(t, json.Unmarshal([]byte(`85.6`), &fromNumber))
	assert.Equal(t, 0, fromString.Cmp(fromNumber))

	assert.Error(t, json.Unmarshal([]byte(`"not-a-number"`), &fromString))
}

func TestMMFromStringRejectsGarbage(t *testing.T) {
	_, err := MMFromString("85,60")
	assert.Error(t, err)
}

func TestRectBounds(t *testing.T) {
	canvasW := mustMM(t, "85.60")
	canvasH := mustMM(t, "53.98")

	tests := []struct {
		name string
		rect Rect
		fits bool
	}{
		{
			name: "inside",
			rect: Rect{X: mustMM(t, "4"), Y: mustMM(t, "4"), W: mustMM(t, "50"), H: mustMM(t, "8")},
			fits: true,
		},
		{
			name: "flush against both edges",
			rect: Rect{X: ZeroMM, Y: ZeroMM, W: canvasW, H: canvasH},
			fits: true,
		},
		{
			name: "exceeds width by a hundredth",
			rect: Rect{X: mustMM(t, "0.01"), Y: ZeroMM, W: canvasW, H: mustMM(t, "10")},
			fits: false,
		},
		{
			name: "exceeds height",
			rect: Rect{X: ZeroMM, Y: mustMM(t, "50"), W: mustMM(t, "10"), H: mustMM(t, "4.01")},
			fits: false,
		},
		{
			name: "negative origin",
			rect: Rect{X: mustMM(t, "-1"), Y: ZeroMM, W: mustMM(t, "10"), H: mustMM(t, "10")},
			fits: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fits, tt.rect.FitsWithin(canvasW, canvasH))
		})
	}
}
