package conv

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomInput(n int, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}

	return out
}

func TestForwardShape(t *testing.T) {
	c, err := NewShortConv(2, 4, 3, 3, true, 0)
	require.NoError(t, err)

	const batch, seqLen = 2, 5
	x := randomInput(batch*seqLen*c.Channels(), 1)

	out, err := c.Forward(x, batch, seqLen)
	require.NoError(t, err)
	assert.Len(t, out, len(x))

	_, err = c.Forward(x[:10], batch, seqLen)
	assert.Error(t, err)
}

func TestCausality(t *testing.T) {
	c, err := NewShortConv(2, 3, 4, 3, true, 0)
	require.NoError(t, err)

	const batch, seqLen = 1, 12
	x := randomInput(batch*seqLen*c.Channels(), 2)

	base, err := c.Forward(x, batch, seqLen)
	require.NoError(t, err)

	// Perturb every channel at position tp and check all earlier
	// positions are untouched.
	for _, tp := range []int{3, 7, seqLen - 1} {
		perturbed := append([]float32(nil), x...)
		for ch := 0; ch < c.Channels(); ch++ {
			perturbed[tp*c.Channels()+ch] += 5
		}

		got, err := c.Forward(perturbed, batch, seqLen)
		require.NoError(t, err)

		for t2 := 0; t2 < tp; t2++ {
			for ch := 0; ch < c.Channels(); ch++ {
				idx := t2*c.Channels() + ch
				assert.Equal(t, base[idx], got[idx],
					"output at t=%d changed after perturbing t=%d", t2, tp)
			}
		}
	}
}

func TestDilationWidensReceptiveField(t *testing.T) {
	// kernel 2, dilation 3: position t sees t and t-3 but not t-1/t-2.
	c, err := NewShortConv(1, 1, 2, 3, false, 0)
	require.NoError(t, err)

	const seqLen = 8
	x := make([]float32, seqLen)

	base, err := c.Forward(x, 1, seqLen)
	require.NoError(t, err)

	probe := append([]float32(nil), x...)
	probe[2] = 1

	got, err := c.Forward(probe, 1, seqLen)
	require.NoError(t, err)

	assert.NotEqual(t, base[2], got[2]) // current tap
	assert.NotEqual(t, base[5], got[5]) // dilated tap
	assert.Equal(t, base[3], got[3])
	assert.Equal(t, base[4], got[4])
	assert.Equal(t, base[6], got[6])
}

func TestBranchNormIndependence(t *testing.T) {
	c, err := NewShortConv(2, 2, 3, 1, false, 0)
	require.NoError(t, err)

	const batch, seqLen = 1, 4
	x := randomInput(batch*seqLen*c.Channels(), 3)

	base, err := c.Forward(x, batch, seqLen)
	require.NoError(t, err)

	// Scaling one branch leaves the other branch's channels unchanged:
	// RMS normalization is per branch, and the depthwise kernel never
	// mixes channels.
	scaled := append([]float32(nil), x...)
	for p := 0; p < batch*seqLen; p++ {
		for d := 0; d < 2; d++ {
			scaled[p*c.Channels()+d] *= 3 // branch 0 only
		}
	}

	got, err := c.Forward(scaled, batch, seqLen)
	require.NoError(t, err)

	for p := 0; p < batch*seqLen; p++ {
		for d := 2; d < 4; d++ { // branch 1 channels
			idx := p*c.Channels() + d
			assert.InDelta(t, base[idx], got[idx], 1e-6)
		}
	}
}

func TestConstructorValidation(t *testing.T) {
	cases := [][5]int{
		{0, 4, 3, 1, 0},
		{2, 0, 3, 1, 0},
		{2, 4, 0, 1, 0},
		{2, 4, 3, 0, 0},
	}
	for _, c := range cases {
		_, err := NewShortConv(c[0], c[1], c[2], c[3], false, 0)
		assert.Error(t, err)
	}
}
