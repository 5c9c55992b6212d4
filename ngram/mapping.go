package ngram

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultIgnoreID is the conventional ignore-label sentinel. Positions
// carrying it hash as padding instead of being rejected.
const DefaultIgnoreID = -100

// MappingConfig describes one layer's hash mapping.
type MappingConfig struct {
	// LayerID selects the multiplier stream.
	LayerID int

	// Seed is the model-wide hashing seed.
	Seed int64

	// MaxNgramSize is the largest window length; orders 2..MaxNgramSize
	// are hashed.
	MaxNgramSize int

	// HeadsPerOrder is the number of hash heads per n-gram order.
	HeadsPerOrder int

	// TargetVocabSize holds the per-order index-space targets, one
	// entry per order 2..MaxNgramSize. The assigned prime moduli are
	// the next free primes at or above these targets.
	TargetVocabSize []int

	// PadID fills the missing left context at the sequence start.
	PadID int64

	// IgnoreID is a negative sentinel hashed as padding. Zero value
	// means DefaultIgnoreID.
	IgnoreID int64

	// CompressedVocabSize bounds valid input ids.
	CompressedVocabSize int
}

func (c *MappingConfig) validate() error {
	if c.MaxNgramSize < 2 {
		return fmt.Errorf("ngram: max n-gram size must be >= 2, got %d", c.MaxNgramSize)
	}
	if c.HeadsPerOrder < 1 {
		return fmt.Errorf("ngram: heads per order must be >= 1, got %d", c.HeadsPerOrder)
	}
	if got, want := len(c.TargetVocabSize), c.MaxNgramSize-1; got != want {
		return fmt.Errorf("ngram: %d target vocabulary sizes for %d orders", got, want)
	}
	if c.CompressedVocabSize <= 0 {
		return fmt.Errorf("ngram: compressed vocabulary size must be positive, got %d", c.CompressedVocabSize)
	}
	if c.PadID < 0 || c.PadID >= int64(c.CompressedVocabSize) {
		return fmt.Errorf("ngram: pad id %d outside compressed vocabulary [0,%d)", c.PadID, c.CompressedVocabSize)
	}
	if c.IgnoreID > 0 {
		return fmt.Errorf("ngram: ignore id must be negative, got %d", c.IgnoreID)
	}

	return nil
}

// ErrInvalidToken indicates an input id the mapping cannot hash.
type ErrInvalidToken struct {
	ID    int64
	Bound int
}

func (e *ErrInvalidToken) Error() string {
	return fmt.Sprintf("ngram: token id %d outside compressed vocabulary [0,%d)", e.ID, e.Bound)
}

// Mapping hashes n-gram windows of a compressed token sequence into
// per-head index spaces. Immutable and safe for concurrent use once
// constructed.
type Mapping struct {
	cfg         MappingConfig
	ignoreID    int64
	multipliers []int64
	primes      [][]int64 // [order-2][head]
}

// NewMapping derives the layer's multipliers and draws its prime
// moduli from alloc. Layers sharing alloc never collide on a modulus.
func NewMapping(cfg MappingConfig, alloc *PrimeAllocator) (*Mapping, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, fmt.Errorf("ngram: prime allocator is required")
	}

	maxTarget := 0
	for _, v := range cfg.TargetVocabSize {
		if v > maxTarget {
			maxTarget = v
		}
	}
	hb, err := HalfBound(maxTarget)
	if err != nil {
		return nil, err
	}

	primes := make([][]int64, cfg.MaxNgramSize-1)
	for oi := range primes {
		target := cfg.TargetVocabSize[oi]
		if target < 2 {
			return nil, fmt.Errorf("ngram: target vocabulary size for order %d must be >= 2, got %d", oi+2, target)
		}

		heads := make([]int64, cfg.HeadsPerOrder)
		cursor := int64(target) - 1
		for h := range heads {
			p, err := alloc.Next(cursor)
			if err != nil {
				return nil, err
			}
			heads[h] = p
			cursor = p
		}
		primes[oi] = heads
	}

	m := &Mapping{
		cfg:         cfg,
		ignoreID:    cfg.IgnoreID,
		multipliers: Multipliers(cfg.Seed, cfg.LayerID, cfg.MaxNgramSize, hb),
		primes:      primes,
	}
	if m.ignoreID == 0 {
		m.ignoreID = DefaultIgnoreID
	}

	return m, nil
}

// RestoreMapping rebuilds a mapping from cached multipliers and prime
// assignments, marking the primes in alloc so later allocations avoid
// them.
func RestoreMapping(cfg MappingConfig, multipliers []int64, primes [][]int64, alloc *PrimeAllocator) (*Mapping, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(multipliers) != cfg.MaxNgramSize {
		return nil, fmt.Errorf("ngram: %d cached multipliers for max n-gram size %d", len(multipliers), cfg.MaxNgramSize)
	}
	if len(primes) != cfg.MaxNgramSize-1 {
		return nil, fmt.Errorf("ngram: %d cached prime rows for %d orders", len(primes), cfg.MaxNgramSize-1)
	}
	for oi, heads := range primes {
		if len(heads) != cfg.HeadsPerOrder {
			return nil, fmt.Errorf("ngram: %d cached primes for order %d, want %d", len(heads), oi+2, cfg.HeadsPerOrder)
		}
		if alloc != nil {
			if err := alloc.Mark(heads...); err != nil {
				return nil, err
			}
		}
	}

	m := &Mapping{cfg: cfg, ignoreID: cfg.IgnoreID, multipliers: multipliers, primes: primes}
	if m.ignoreID == 0 {
		m.ignoreID = DefaultIgnoreID
	}

	return m, nil
}

// LayerID returns the layer this mapping belongs to.
func (m *Mapping) LayerID() int { return m.cfg.LayerID }

// TotalHeads returns the number of hash heads across all orders.
func (m *Mapping) TotalHeads() int {
	return (m.cfg.MaxNgramSize - 1) * m.cfg.HeadsPerOrder
}

// HeadSizes returns the per-head index-space sizes (the prime moduli)
// in head order: orders ascending, heads within an order ascending.
func (m *Mapping) HeadSizes() []int {
	out := make([]int, 0, m.TotalHeads())
	for _, heads := range m.primes {
		for _, p := range heads {
			out = append(out, int(p))
		}
	}

	return out
}

// Multipliers returns the layer's multiplier vector. Callers must not
// mutate it.
func (m *Mapping) Multipliers() []int64 { return m.multipliers }

// Primes returns the per-order prime assignments. Callers must not
// mutate them.
func (m *Mapping) Primes() [][]int64 { return m.primes }

// Hash maps tokens [batch, seqLen] to hash indices
// [batch, seqLen, totalHeads]. Batch rows are hashed in parallel;
// positions have no sequential dependency.
//
// For position t and order n the window is the n tokens ending at t,
// left-padded with PadID; the mix is tok[0]*mult[0] XORed with
// tok[k]*mult[k] for the rest of the window, in wrapping int64
// arithmetic. The wraparound is part of the hash, not an error.
func (m *Mapping) Hash(tokens []int64, batch, seqLen int) ([]int64, error) {
	if batch <= 0 || seqLen <= 0 {
		return nil, fmt.Errorf("ngram: invalid shape [%d,%d]", batch, seqLen)
	}
	if len(tokens) != batch*seqLen {
		return nil, fmt.Errorf("ngram: %d tokens for shape [%d,%d]", len(tokens), batch, seqLen)
	}

	totalHeads := m.TotalHeads()
	out := make([]int64, batch*seqLen*totalHeads)

	var g errgroup.Group
	for b := 0; b < batch; b++ {
		row := tokens[b*seqLen : (b+1)*seqLen]
		dst := out[b*seqLen*totalHeads : (b+1)*seqLen*totalHeads]
		g.Go(func() error {
			return m.hashRow(dst, row)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (m *Mapping) hashRow(dst, row []int64) error {
	ids := make([]int64, len(row))
	for i, id := range row {
		switch {
		case id == m.ignoreID:
			ids[i] = m.cfg.PadID
		case id < 0 || id >= int64(m.cfg.CompressedVocabSize):
			return &ErrInvalidToken{ID: id, Bound: m.cfg.CompressedVocabSize}
		default:
			ids[i] = id
		}
	}

	totalHeads := m.TotalHeads()
	for t := range ids {
		col := 0
		for oi, heads := range m.primes {
			n := oi + 2

			var mix int64
			for k := 0; k < n; k++ {
				pos := t - (n - 1) + k
				tok := m.cfg.PadID
				if pos >= 0 {
					tok = ids[pos]
				}
				term := tok * m.multipliers[k]
				if k == 0 {
					mix = term
				} else {
					mix ^= term
				}
			}

			for _, p := range heads {
				v := mix % p
				if v < 0 {
					v += p
				}
				dst[t*totalHeads+col] = v
				col++
			}
		}
	}

	return nil
}
