// Package engram implements a deterministic n-gram memory layer for
// transformer-like backbones.
//
// Token ids are first mapped through a compressed tokenizer that merges
// vocabulary entries with identical normalized text. Per layer, n-gram
// windows of the compressed sequence are hashed into bounded index
// spaces (one prime modulus per hash head, globally collision-free
// across the model) and looked up in a single multi-head embedding
// table. The embeddings are gated against the backbone hidden state,
// projected to values and locally mixed by a depthwise causal
// convolution; the result is the layer's residual contribution.
//
// # Quick start
//
//	cfg := engram.Config{
//	    TokenizerSource:  "vocab.json",
//	    TargetVocabSize:  []int{200_000, 200_000},
//	    MaxNgramSize:     3,
//	    EmbedDimPerOrder: 64,
//	    HeadsPerOrder:    2,
//	    LayerIDs:         []int{2, 6, 10},
//	    ConvKernelSize:   4,
//	    HiddenSize:       1024,
//	}
//
//	m, err := engram.Build(ctx, cfg,
//	    engram.WithArtifactStore(store), // cache vocab table + primes
//	)
//
//	ids, _ := m.Compress(tokenIDs)
//	out, _ := m.Forward(hidden, ids, batch, seqLen, 2)
//
// # Determinism
//
// Given identical configuration (and vocabulary content), builds are
// bit-for-bit reproducible: multipliers come from a fixed seeded
// generator, prime assignment is a deterministic forward search, and
// the hash arithmetic is wrapping two's-complement int64 by
// construction. That is what makes cached artifacts portable across
// runs and machines.
//
// # Concurrency
//
// Construction is single-threaded and does all blocking IO. Built
// models are immutable; Forward may be called concurrently.
package engram
