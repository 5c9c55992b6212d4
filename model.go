package engram

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/engram/artifact"
	"github.com/hupe1980/engram/blobstore"
	"github.com/hupe1980/engram/codec"
	"github.com/hupe1980/engram/ngram"
	"github.com/hupe1980/engram/tokenizer"
)

// Model is a built engram stack: the compressed tokenizer plus one
// engram layer per configured layer id.
//
// Construction is single-threaded and does all blocking work
// (vocabulary decode, prime search, artifact IO). A built model is
// immutable; Forward is safe for concurrent use across goroutines and
// batches.
type Model struct {
	cfg         Config
	tok         *tokenizer.Compressed
	layers      map[int]*layer
	logger      *Logger
	fingerprint string
}

// Build constructs a model from cfg.
//
// With an artifact store configured, the deterministic build products
// (vocab table, multipliers, primes) are loaded from cache when a
// bundle for this configuration exists and stored after a fresh build
// otherwise. Construction fails fast on invalid configuration or
// unavailable tokenizer resources; it never retries.
func Build(ctx context.Context, cfg Config, optFns ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := options{
		codec:       codec.Default,
		compression: artifact.CompressionZSTD,
		logger:      NewLogger(nil),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	fp, err := artifact.Fingerprint(cfg.fingerprintInput())
	if err != nil {
		return nil, fmt.Errorf("engram: fingerprint configuration: %w", err)
	}

	var mgr *artifact.Manager
	if o.store != nil {
		mgr, err = artifact.NewManager(o.store, o.codec, o.compression, o.resources, o.logger.Logger)
		if err != nil {
			return nil, err
		}
	}

	var bundle *artifact.Bundle
	if mgr != nil {
		bundle, err = mgr.Load(ctx, fp)
		switch {
		case err == nil:
			o.logger.Info("engram build restored from artifact cache", "fingerprint", fp)
		case errors.Is(err, blobstore.ErrNotFound):
			bundle = nil
		default:
			// A corrupt or mismatched bundle is recoverable: rebuild.
			o.logger.Warn("artifact cache load failed, rebuilding", "fingerprint", fp, "error", err)
			bundle = nil
		}
	}

	m := &Model{
		cfg:         cfg,
		layers:      make(map[int]*layer, len(cfg.LayerIDs)),
		logger:      o.logger,
		fingerprint: fp,
	}

	if bundle != nil {
		if err := m.restore(bundle); err != nil {
			return nil, err
		}
		return m, nil
	}

	if err := m.build(ctx, o); err != nil {
		return nil, err
	}

	if mgr != nil {
		if err := mgr.Store(ctx, m.bundle()); err != nil {
			// Cache write failure must not fail the build.
			o.logger.Warn("artifact cache store failed", "fingerprint", fp, "error", err)
		}
	}

	return m, nil
}

func (m *Model) mappingConfig(layerID int) ngram.MappingConfig {
	return ngram.MappingConfig{
		LayerID:             layerID,
		Seed:                m.cfg.Seed,
		MaxNgramSize:        m.cfg.MaxNgramSize,
		HeadsPerOrder:       m.cfg.HeadsPerOrder,
		TargetVocabSize:     m.cfg.TargetVocabSize,
		PadID:               m.cfg.PadID,
		CompressedVocabSize: m.tok.CompressedSize(),
	}
}

// build computes everything from scratch.
func (m *Model) build(ctx context.Context, o options) error {
	src := o.vocab
	if src == nil {
		if m.cfg.TokenizerSource == "" {
			return ErrNoTokenizer
		}

		var err error
		src, err = tokenizer.LoadJSONVocab(m.cfg.TokenizerSource)
		if err != nil {
			return err
		}
	}

	tok, err := tokenizer.Build(ctx, src, o.resources)
	if err != nil {
		return err
	}
	m.tok = tok

	m.logger.Info("vocabulary compressed",
		"original", tok.OriginalSize(), "compressed", tok.CompressedSize())

	alloc := ngram.NewPrimeAllocator()
	for _, layerID := range m.cfg.LayerIDs {
		mapping, err := ngram.NewMapping(m.mappingConfig(layerID), alloc)
		if err != nil {
			return err
		}

		l, err := newLayer(m.cfg, mapping, mapping.HeadSizes())
		if err != nil {
			return err
		}
		m.layers[layerID] = l

		m.logger.WithLayer(layerID).Info("engram layer built",
			"heads", mapping.TotalHeads(), "primes", mapping.HeadSizes())
	}

	return nil
}

// restore rebuilds the model from a cached bundle.
func (m *Model) restore(b *artifact.Bundle) error {
	tok, err := tokenizer.NewFromTable(b.VocabTable)
	if err != nil {
		return fmt.Errorf("engram: cached vocab table: %w", err)
	}
	m.tok = tok

	setups := make(map[int]artifact.LayerSetup, len(b.Layers))
	for _, s := range b.Layers {
		setups[s.LayerID] = s
	}

	alloc := ngram.NewPrimeAllocator()
	for _, layerID := range m.cfg.LayerIDs {
		s, ok := setups[layerID]
		if !ok {
			return fmt.Errorf("engram: cached bundle is missing layer %d", layerID)
		}

		mapping, err := ngram.RestoreMapping(m.mappingConfig(layerID), s.Multipliers, s.Primes, alloc)
		if err != nil {
			return err
		}

		l, err := newLayer(m.cfg, mapping, mapping.HeadSizes())
		if err != nil {
			return err
		}
		m.layers[layerID] = l
	}

	return nil
}

// bundle snapshots the deterministic build products for caching.
func (m *Model) bundle() *artifact.Bundle {
	b := &artifact.Bundle{
		Fingerprint: m.fingerprint,
		VocabTable:  m.tok.Table(),
		Layers:      make([]artifact.LayerSetup, 0, len(m.cfg.LayerIDs)),
	}
	for _, layerID := range m.cfg.LayerIDs {
		l := m.layers[layerID]
		b.Layers = append(b.Layers, artifact.LayerSetup{
			LayerID:     layerID,
			Multipliers: l.mapping.Multipliers(),
			Primes:      l.mapping.Primes(),
		})
	}

	return b
}

// Fingerprint returns the configuration fingerprint the artifact cache
// keys on.
func (m *Model) Fingerprint() string { return m.fingerprint }

// Tokenizer returns the compressed tokenizer.
func (m *Model) Tokenizer() *tokenizer.Compressed { return m.tok }

// Compress maps original token ids into the compressed id space.
func (m *Model) Compress(ids []int64) ([]int64, error) {
	return m.tok.Compress(ids)
}

// HashIDs returns the hash tensor [batch, seqLen, totalHeads] for the
// given layer over compressed token ids.
func (m *Model) HashIDs(tokens []int64, batch, seqLen, layerID int) ([]int64, error) {
	l, ok := m.layers[layerID]
	if !ok {
		return nil, &ErrUnknownLayer{LayerID: layerID}
	}

	return l.mapping.Hash(tokens, batch, seqLen)
}

// TotalHeads returns the number of hash heads of the given layer.
func (m *Model) TotalHeads(layerID int) (int, error) {
	l, ok := m.layers[layerID]
	if !ok {
		return 0, &ErrUnknownLayer{LayerID: layerID}
	}

	return l.mapping.TotalHeads(), nil
}

// Forward computes the residual contribution of the layer layerID.
//
// hidden is the backbone state [batch, seqLen, hcMult, hiddenSize],
// tokens the compressed token ids [batch, seqLen]. The result has the
// same shape as hidden; the caller adds it into the residual stream.
func (m *Model) Forward(hidden []float32, tokens []int64, batch, seqLen, layerID int) ([]float32, error) {
	l, ok := m.layers[layerID]
	if !ok {
		return nil, &ErrUnknownLayer{LayerID: layerID}
	}

	m.logger.Debug("engram forward", "layer", layerID, "batch", batch, "seq_len", seqLen)

	return l.forward(hidden, tokens, batch, seqLen)
}
