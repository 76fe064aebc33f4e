package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

func TestCheckTexts(t *testing.T) {
	assert.NoError(t, CheckTexts([]string{"a", "b"}))

	err := CheckTexts(nil)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindEmbedding))

	err = CheckTexts([]string{"ok", "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyText)
	assert.Contains(t, err.Error(), "position 1")
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-12)
	assert.InDelta(t, 0.8, v[1], 1e-12)

	zero := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)

	n := 0.0
	for _, x := range Normalize([]float64{1, 2, 3}) {
		n += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(n), 1e-12)
}
