package tokenizer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/engram/resource"
)

// Compressed maps original vocabulary ids onto a smaller id space in
// which ids sharing a normalized text form coincide.
//
// The table is built once and immutable afterwards; all methods are
// safe for concurrent use.
type Compressed struct {
	table          []int32
	compressedSize int
}

// ErrTokenOutOfRange indicates an input id outside the original
// vocabulary.
type ErrTokenOutOfRange struct {
	ID   int64
	Size int
}

func (e *ErrTokenOutOfRange) Error() string {
	return fmt.Sprintf("tokenizer: token id %d out of range [0,%d)", e.ID, e.Size)
}

// Build decodes every id of src, groups ids by normalized key and
// assigns compressed ids in first-encounter order.
//
// Decoding is parallel (bounded by rc, which may be nil); the
// first-encounter assignment itself is a single deterministic pass, so
// the resulting table is identical across runs regardless of worker
// count.
func Build(ctx context.Context, src VocabSource, rc *resource.Controller) (*Compressed, error) {
	size := src.Size()
	if size <= 0 {
		return nil, fmt.Errorf("tokenizer: vocabulary is empty")
	}

	keys := make([]string, size)

	g, gctx := errgroup.WithContext(ctx)
	const chunk = 2048
	for lo := 0; lo < size; lo += chunk {
		lo := lo
		hi := lo + chunk
		if hi > size {
			hi = size
		}

		if err := rc.AcquireWorker(gctx); err != nil {
			// A canceled gctx means a worker already failed; surface
			// that error instead of the cancellation.
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			return nil, err
		}
		g.Go(func() error {
			defer rc.ReleaseWorker()
			for id := lo; id < hi; id++ {
				decoded, err := src.Decode(id)
				if err != nil {
					return err
				}
				raw, err := src.TokenString(id)
				if err != nil {
					return err
				}
				keys[id] = normalizeKey(decoded, raw)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := make([]int32, size)
	assigned := make(map[string]int32, size)
	for id, key := range keys {
		newID, ok := assigned[key]
		if !ok {
			newID = int32(len(assigned))
			assigned[key] = newID
		}
		table[id] = newID
	}

	return &Compressed{table: table, compressedSize: len(assigned)}, nil
}

// NewFromTable restores a Compressed from a previously built lookup
// table, validating the invariants a well-formed table satisfies.
func NewFromTable(table []int32) (*Compressed, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("tokenizer: empty lookup table")
	}

	maxID := int32(-1)
	for i, v := range table {
		if v < 0 || int(v) >= len(table) {
			return nil, fmt.Errorf("tokenizer: table entry %d maps to invalid id %d", i, v)
		}
		if v > maxID {
			maxID = v
		}
	}

	return &Compressed{table: table, compressedSize: int(maxID) + 1}, nil
}

// OriginalSize returns the size of the original id space.
func (c *Compressed) OriginalSize() int { return len(c.table) }

// CompressedSize returns the size of the compressed id space.
// Always <= OriginalSize.
func (c *Compressed) CompressedSize() int { return c.compressedSize }

// Table returns the raw lookup table for artifact serialization.
// Callers must not mutate it.
func (c *Compressed) Table() []int32 { return c.table }

// Compress maps ids elementwise into the compressed space. Negative
// ids (pad and ignore-label sentinels) pass through unchanged;
// non-negative ids outside the original vocabulary are an error.
func (c *Compressed) Compress(ids []int64) ([]int64, error) {
	out := make([]int64, len(ids))
	for i, id := range ids {
		if id < 0 {
			out[i] = id
			continue
		}
		if id >= int64(len(c.table)) {
			return nil, &ErrTokenOutOfRange{ID: id, Size: len(c.table)}
		}
		out[i] = int64(c.table[id])
	}

	return out, nil
}
