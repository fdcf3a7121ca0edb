package export

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"example.com/planbridge/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func TestConvertQty(t *testing.T) {
	r := &run{
		loc: time.UTC,
		log: zerolog.Nop(),
		uom: map[uint]uomEntry{
			1: {Factor: 1, Category: 1, Name: "Units"},
			2: {Factor: 12, Category: 1, Name: "Dozens"},
			3: {Factor: 1, Category: 2, Name: "kg"},
		},
		templates: map[uint]*models.ProductTemplate{
			10: {ID: 10, UomID: uintPtr(1)},
			11: {ID: 11},
		},
	}

	t.Run("no unit", func(t *testing.T) {
		assert.Equal(t, 5.0, r.convertQty(5, nil, 10))
		assert.Equal(t, 5.0, r.convertQty(5, uintPtr(0), 10))
	})

	t.Run("unknown unit", func(t *testing.T) {
		assert.Equal(t, 5.0, r.convertQty(5, uintPtr(99), 10))
	})

	t.Run("no template", func(t *testing.T) {
		assert.Equal(t, 24.0, r.convertQty(2, uintPtr(2), 0))
	})

	t.Run("template without unit", func(t *testing.T) {
		assert.Equal(t, 24.0, r.convertQty(2, uintPtr(2), 11))
	})

	t.Run("same unit", func(t *testing.T) {
		assert.Equal(t, 7.0, r.convertQty(7, uintPtr(1), 10))
	})

	t.Run("same category", func(t *testing.T) {
		// 6 units in a 12-factor unit against a factor-1 reference.
		assert.Equal(t, 0.5, r.convertQty(6, uintPtr(2), 10))
	})

	t.Run("category mismatch", func(t *testing.T) {
		assert.Equal(t, 6.0, r.convertQty(6, uintPtr(3), 10))
	})
}
