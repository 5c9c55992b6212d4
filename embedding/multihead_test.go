package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsets(t *testing.T) {
	m, err := NewMultiHead([]int{53, 59, 61, 67}, 4, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 53, 112, 173}, m.Offsets())
	assert.Equal(t, 240, m.Rows())
	assert.Equal(t, 4, m.NumHeads())
}

func TestOffsetIsolation(t *testing.T) {
	m, err := NewMultiHead([]int{3, 5}, 2, 0)
	require.NoError(t, err)

	// Tag each row with its global row index so lookups reveal exactly
	// which row they touched.
	w := make([]float32, m.Rows()*m.Dim())
	for r := 0; r < m.Rows(); r++ {
		for d := 0; d < m.Dim(); d++ {
			w[r*m.Dim()+d] = float32(r)
		}
	}
	require.NoError(t, m.SetWeights(w))

	// Head 0 id 2 must hit row 2, head 1 id 0 must hit row 3: the
	// boundary ids never bleed into the neighbor head's rows.
	out, err := m.Forward([]int64{2, 0}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(2), out[0])
	assert.Equal(t, float32(3), out[2])

	// Max id of head 1 maps to the last row.
	out, err = m.Forward([]int64{0, 4}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(7), out[2])
}

func TestForwardShape(t *testing.T) {
	m, err := NewMultiHead([]int{7, 11}, 3, 1)
	require.NoError(t, err)

	hashIDs := []int64{
		0, 0,
		6, 10,
		3, 5,
		1, 2,
	}
	out, err := m.Forward(hashIDs, 2, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2*2*2*3)
}

func TestForwardRejectsOutOfRange(t *testing.T) {
	m, err := NewMultiHead([]int{7, 11}, 3, 1)
	require.NoError(t, err)

	var oor *ErrHashOutOfRange
	_, err = m.Forward([]int64{7, 0}, 1, 1)
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 0, oor.Head)

	_, err = m.Forward([]int64{0, -1}, 1, 1)
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 1, oor.Head)

	_, err = m.Forward([]int64{0, 0, 0}, 1, 1)
	assert.Error(t, err)
}

func TestDeterministicInit(t *testing.T) {
	a, err := NewMultiHead([]int{5, 5}, 4, 7)
	require.NoError(t, err)
	b, err := NewMultiHead([]int{5, 5}, 4, 7)
	require.NoError(t, err)
	assert.Equal(t, a.Weights(), b.Weights())

	c, err := NewMultiHead([]int{5, 5}, 4, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a.Weights(), c.Weights())
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewMultiHead(nil, 4, 0)
	assert.Error(t, err)

	_, err = NewMultiHead([]int{5, 0}, 4, 0)
	assert.Error(t, err)

	_, err = NewMultiHead([]int{5}, 0, 0)
	assert.Error(t, err)
}
