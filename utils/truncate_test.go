package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateErrorDetail(t *testing.T) {
	short := "chrome exited with status 1"
	assert.Equal(t, short, TruncateErrorDetail(short, MaxErrorDetail))

	long := strings.Repeat("x", MaxErrorDetail+100)
	got := TruncateErrorDetail(long, MaxErrorDetail)
	assert.LessOrEqual(t, len(got), MaxErrorDetail)
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTruncateErrorDetailKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("ü", MaxErrorDetail)
	got := TruncateErrorDetail(long, MaxErrorDetail)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxErrorDetail)
}
