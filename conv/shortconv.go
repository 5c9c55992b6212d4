// Package conv implements the local causal mixing operator applied to
// the engram layer's gated values.
package conv

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/engram/internal/math32"
)

// ShortConv is a depthwise causal 1-D convolution over hcMult parallel
// branches.
//
// Each branch is RMS-normalized independently, the branches are
// concatenated on the channel axis, and one grouped kernel (one group
// per channel) slides over the sequence with a configurable dilation.
// Dilation is typically set to the model's max n-gram size: it widens
// the receptive field without adding parameters. Left padding of
// (kernel-1)*dilation keeps the operator causal.
type ShortConv struct {
	branches int
	dim      int
	kernel   int
	dilation int
	silu     bool

	normW  []float32 // per-branch RMS gains, branches*dim
	weight []float32 // depthwise kernels, channels*kernel
}

// NewShortConv constructs the operator. Kernel weights are seeded
// uniform in [-1/sqrt(kernel), 1/sqrt(kernel)); norm gains start at 1.
func NewShortConv(branches, dim, kernel, dilation int, silu bool, seed int64) (*ShortConv, error) {
	if branches <= 0 {
		return nil, fmt.Errorf("conv: branches must be positive, got %d", branches)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("conv: dim must be positive, got %d", dim)
	}
	if kernel <= 0 {
		return nil, fmt.Errorf("conv: kernel size must be positive, got %d", kernel)
	}
	if dilation <= 0 {
		return nil, fmt.Errorf("conv: dilation must be positive, got %d", dilation)
	}

	channels := branches * dim

	normW := make([]float32, channels)
	for i := range normW {
		normW[i] = 1
	}

	weight := make([]float32, channels*kernel)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5ca1ab1e))
	scale := float32(1 / math.Sqrt(float64(kernel)))
	for i := range weight {
		weight[i] = (rng.Float32()*2 - 1) * scale
	}

	return &ShortConv{
		branches: branches,
		dim:      dim,
		kernel:   kernel,
		dilation: dilation,
		silu:     silu,
		normW:    normW,
		weight:   weight,
	}, nil
}

// Channels returns branches*dim.
func (c *ShortConv) Channels() int { return c.branches * c.dim }

// Weights exposes the depthwise kernel, row-major [channel][tap].
// Callers must not resize.
func (c *ShortConv) Weights() []float32 { return c.weight }

// NormWeights exposes the per-branch RMS gains. Callers must not
// resize.
func (c *ShortConv) NormWeights() []float32 { return c.normW }

// Forward applies the operator to x [batch, seqLen, branches, dim] and
// returns a tensor of the same shape. Output at position t depends only
// on inputs at positions <= t.
func (c *ShortConv) Forward(x []float32, batch, seqLen int) ([]float32, error) {
	channels := c.Channels()
	if len(x) != batch*seqLen*channels {
		return nil, fmt.Errorf("conv: %d values for shape [%d,%d,%d,%d]", len(x), batch, seqLen, c.branches, c.dim)
	}

	// Per-position, per-branch RMS norm. The [branches, dim] block at
	// one position flattens straight into the channel axis.
	normed := make([]float32, len(x))
	for p := 0; p < batch*seqLen; p++ {
		for i := 0; i < c.branches; i++ {
			off := p*channels + i*c.dim
			math32.RMSNorm(normed[off:off+c.dim], x[off:off+c.dim], c.normW[i*c.dim:(i+1)*c.dim])
		}
	}

	out := make([]float32, len(x))
	for b := 0; b < batch; b++ {
		base := b * seqLen * channels
		for t := 0; t < seqLen; t++ {
			for ch := 0; ch < channels; ch++ {
				var sum float32
				for k := 0; k < c.kernel; k++ {
					// Tap k-th counts back (kernel-1-k)*dilation steps;
					// the implicit left padding contributes zero.
					tp := t - (c.kernel-1-k)*c.dilation
					if tp < 0 {
						continue
					}
					sum += c.weight[ch*c.kernel+k] * normed[base+tp*channels+ch]
				}
				out[base+t*channels+ch] = sum
			}
		}
	}

	if c.silu {
		math32.SiLU(out)
	}

	return out, nil
}
