package engram

import "fmt"

// BackboneBlock is the slice of the surrounding transformer a layer's
// residual contribution is folded into: attention, MoE, whatever the
// host model runs at that depth.
//
// Engram itself never inspects the block; the interface exists so the
// layer can be exercised in isolation with IdentityBlock standing in
// for a real backbone.
type BackboneBlock interface {
	// Forward maps hidden [batch, seqLen, hiddenSize] to a tensor of
	// the same shape.
	Forward(hidden []float32, batch, seqLen int) ([]float32, error)
}

// IdentityBlock is the no-op BackboneBlock.
type IdentityBlock struct{}

// Forward returns a copy of hidden.
func (IdentityBlock) Forward(hidden []float32, batch, seqLen int) ([]float32, error) {
	out := make([]float32, len(hidden))
	copy(out, hidden)

	return out, nil
}

// Augment runs one backbone block followed by the engram layer for
// layerID and returns the combined residual stream
// [batch, seqLen, hiddenSize].
//
// The hyper-connection branches are simple expand/collapse: the hidden
// state is replicated per branch before the layer and the branch
// contributions are summed back afterwards.
func (m *Model) Augment(bb BackboneBlock, hidden []float32, tokens []int64, batch, seqLen, layerID int) ([]float32, error) {
	if bb == nil {
		bb = IdentityBlock{}
	}

	if want := batch * seqLen * m.cfg.HiddenSize; len(hidden) != want {
		return nil, &ErrShapeMismatch{What: "hidden state", Expected: want, Actual: len(hidden)}
	}

	out, err := bb.Forward(hidden, batch, seqLen)
	if err != nil {
		return nil, fmt.Errorf("engram: backbone block: %w", err)
	}

	expanded := m.expandBranches(out, batch, seqLen)
	contribution, err := m.Forward(expanded, tokens, batch, seqLen, layerID)
	if err != nil {
		return nil, err
	}

	m.collapseBranchesInto(out, contribution, batch, seqLen)

	return out, nil
}

// expandBranches replicates [B,L,D] into [B,L,hcMult,D].
func (m *Model) expandBranches(hidden []float32, batch, seqLen int) []float32 {
	hc := m.cfg.HCMult
	d := m.cfg.HiddenSize

	out := make([]float32, batch*seqLen*hc*d)
	for p := 0; p < batch*seqLen; p++ {
		src := hidden[p*d : (p+1)*d]
		for i := 0; i < hc; i++ {
			copy(out[(p*hc+i)*d:(p*hc+i+1)*d], src)
		}
	}

	return out
}

// collapseBranchesInto sums the [B,L,hcMult,D] contribution over the
// branch axis into dst [B,L,D].
func (m *Model) collapseBranchesInto(dst, contribution []float32, batch, seqLen int) {
	hc := m.cfg.HCMult
	d := m.cfg.HiddenSize

	for p := 0; p < batch*seqLen; p++ {
		row := dst[p*d : (p+1)*d]
		for i := 0; i < hc; i++ {
			branch := contribution[(p*hc+i)*d : (p*hc+i+1)*d]
			for j := range row {
				row[j] += branch[j]
			}
		}
	}
}
