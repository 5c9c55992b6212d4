package ngram

import (
	"fmt"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// maxPrimeScan caps the forward search for the next free prime. Hit
// only by pathological configurations (enormous head counts crammed
// above a huge vocabulary target).
const maxPrimeScan = 1 << 22

// ErrPrimeExhausted is returned when the bounded forward search finds
// no unallocated prime.
type ErrPrimeExhausted struct {
	From int64
	Scan int64
}

func (e *ErrPrimeExhausted) Error() string {
	return fmt.Sprintf("ngram: no free prime in (%d, %d]", e.From, e.From+e.Scan)
}

// PrimeAllocator hands out distinct prime moduli across every
// (layer, order, head) combination of a model.
//
// It is an explicit value owned by the model builder, never a hidden
// global, so independent models in one process cannot interfere and
// tests stay deterministic. Allocation only happens during
// single-threaded construction; the mutex guards against layers that
// share an allocator being built concurrently anyway.
type PrimeAllocator struct {
	mu        sync.Mutex
	allocated *roaring.Bitmap
}

// NewPrimeAllocator creates an empty allocator.
func NewPrimeAllocator() *PrimeAllocator {
	return &PrimeAllocator{allocated: roaring.New()}
}

// Next returns the smallest unallocated prime strictly greater than
// from, marking it allocated.
func (a *PrimeAllocator) Next(from int64) (int64, error) {
	if from < 0 {
		from = 0
	}
	if from >= math.MaxUint32 {
		return 0, fmt.Errorf("ngram: prime cursor %d exceeds the supported range", from)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for c := from + 1; c <= from+maxPrimeScan && c <= math.MaxUint32; c++ {
		if !isPrime(c) {
			continue
		}
		if a.allocated.Contains(uint32(c)) {
			continue
		}

		a.allocated.Add(uint32(c))
		return c, nil
	}

	return 0, &ErrPrimeExhausted{From: from, Scan: maxPrimeScan}
}

// Mark records externally assigned primes, used when restoring a
// layer's setup from a cached artifact so later allocations still
// avoid them.
func (a *PrimeAllocator) Mark(primes ...int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range primes {
		if p <= 1 || p > math.MaxUint32 {
			return fmt.Errorf("ngram: cannot mark %d as allocated prime", p)
		}
		a.allocated.Add(uint32(p))
	}

	return nil
}

// Allocated reports whether p has been handed out.
func (a *PrimeAllocator) Allocated(p int64) bool {
	if p <= 0 || p > math.MaxUint32 {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocated.Contains(uint32(p))
}

// Count returns the number of allocated primes.
func (a *PrimeAllocator) Count() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocated.GetCardinality()
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := int64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}

	return true
}
