package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteattr(t *testing.T) {
	assert.Equal(t, `"plain"`, quoteattr("plain"))
	assert.Equal(t, `"a &amp; b"`, quoteattr("a & b"))
	assert.Equal(t, `"&lt;tag&gt;"`, quoteattr("<tag>"))
	assert.Equal(t, `"say &quot;hi&quot;"`, quoteattr(`say "hi"`))
	assert.Equal(t, `"line&#10;break"`, quoteattr("line\nbreak"))
}

func TestIsoDuration(t *testing.T) {
	assert.Equal(t, "P0DT1H30M0S", isoDuration(90*time.Minute))
	assert.Equal(t, "P1DT2H0M0S", isoDuration(26*time.Hour))
	assert.Equal(t, "P0DT0H0M0S", isoDuration(-time.Hour))
	assert.Equal(t, "P0DT0H0M30S", isoDuration(30*time.Second))
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, "P1DT12H0M0S", durationDays(1.5))
	assert.Equal(t, "P0DT1H30M0S", durationMinutes(90))
	assert.Equal(t, "P0DT0H0M30S", durationMinutes(0.5))
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "Widget @ WH 12", truncateName("Widget", " @ WH 12"))

	base := strings.Repeat("x", 400)
	suffix := " @ WH 12345"
	got := truncateName(base, suffix)
	assert.Len(t, got, maxNameLength)
	assert.True(t, strings.HasSuffix(got, suffix))
	assert.True(t, strings.HasPrefix(got, "xxx"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab", clip("abcdef", 2))
}
