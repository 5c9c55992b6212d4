// Package embedding provides the shared multi-head embedding table the
// engram layers read their hash indices from.
package embedding

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// MultiHead is a single embedding matrix addressed by per-head offsets.
//
// Head h with vocabulary size N_h owns rows
// [offset_h, offset_h+N_h) where offset_h is the cumulative size of the
// preceding heads; one table keeps the lookup a single gather instead
// of H separate ones. Immutable after construction apart from
// SetWeights, which external trainers call between forward passes.
type MultiHead struct {
	headSizes []int
	offsets   []int
	dim       int
	table     []float32
}

// ErrHashOutOfRange indicates a hash id outside its head's index space.
type ErrHashOutOfRange struct {
	Head int
	ID   int64
	Size int
}

func (e *ErrHashOutOfRange) Error() string {
	return fmt.Sprintf("embedding: hash id %d out of range [0,%d) for head %d", e.ID, e.Size, e.Head)
}

// NewMultiHead builds the table for the given per-head sizes and
// embedding dimension. Weights are seeded uniform in
// [-1/sqrt(dim), 1/sqrt(dim)), deterministic per seed.
func NewMultiHead(headSizes []int, dim int, seed int64) (*MultiHead, error) {
	if len(headSizes) == 0 {
		return nil, fmt.Errorf("embedding: no head sizes")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: dimension must be positive, got %d", dim)
	}

	offsets := make([]int, len(headSizes))
	rows := 0
	for h, n := range headSizes {
		if n <= 0 {
			return nil, fmt.Errorf("embedding: head %d has non-positive size %d", h, n)
		}
		offsets[h] = rows
		rows += n
	}

	table := make([]float32, rows*dim)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	scale := float32(1 / math.Sqrt(float64(dim)))
	for i := range table {
		table[i] = (rng.Float32()*2 - 1) * scale
	}

	return &MultiHead{
		headSizes: append([]int(nil), headSizes...),
		offsets:   offsets,
		dim:       dim,
		table:     table,
	}, nil
}

// NumHeads returns the number of heads.
func (m *MultiHead) NumHeads() int { return len(m.headSizes) }

// Dim returns the embedding dimension per head.
func (m *MultiHead) Dim() int { return m.dim }

// Rows returns the total number of table rows.
func (m *MultiHead) Rows() int { return len(m.table) / m.dim }

// Offsets returns the per-head row offsets. Callers must not mutate.
func (m *MultiHead) Offsets() []int { return m.offsets }

// Weights exposes the raw table, row-major. Callers must not resize.
func (m *MultiHead) Weights() []float32 { return m.table }

// SetWeights replaces the table contents, e.g. with trained values.
func (m *MultiHead) SetWeights(w []float32) error {
	if len(w) != len(m.table) {
		return fmt.Errorf("embedding: weight length %d, want %d", len(w), len(m.table))
	}
	copy(m.table, w)

	return nil
}

// Forward looks up hashIDs [batch, seqLen, numHeads] and returns
// embeddings [batch, seqLen, numHeads, dim].
//
// Every id is bounds-checked against its head before the lookup; an
// out-of-range id is an error, never a silent truncation.
func (m *MultiHead) Forward(hashIDs []int64, batch, seqLen int) ([]float32, error) {
	heads := len(m.headSizes)
	if len(hashIDs) != batch*seqLen*heads {
		return nil, fmt.Errorf("embedding: %d hash ids for shape [%d,%d,%d]", len(hashIDs), batch, seqLen, heads)
	}

	out := make([]float32, batch*seqLen*heads*m.dim)
	for i, id := range hashIDs {
		h := i % heads
		if id < 0 || id >= int64(m.headSizes[h]) {
			return nil, &ErrHashOutOfRange{Head: h, ID: id, Size: m.headSizes[h]}
		}

		row := m.offsets[h] + int(id)
		copy(out[i*m.dim:(i+1)*m.dim], m.table[row*m.dim:(row+1)*m.dim])
	}

	return out, nil
}
