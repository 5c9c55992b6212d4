// Package ngram hashes token n-gram windows into bounded, per-head
// index spaces.
//
// Each layer owns a deterministic multiplier vector; each (order, head)
// pair owns a globally unique prime modulus handed out by a shared
// PrimeAllocator. The hash is a wrapping int64 multiply/XOR mix over
// the window followed by a non-negative modulus, reproducible bit for
// bit across runs and machines.
package ngram
