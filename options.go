package engram

import (
	"github.com/hupe1980/engram/artifact"
	"github.com/hupe1980/engram/blobstore"
	"github.com/hupe1980/engram/codec"
	"github.com/hupe1980/engram/resource"
	"github.com/hupe1980/engram/tokenizer"
)

type options struct {
	codec       codec.Codec
	store       blobstore.Store
	compression artifact.Compression
	resources   *resource.Controller
	logger      *Logger
	vocab       tokenizer.VocabSource
}

// Option configures model construction behavior.
type Option func(*options)

// WithCodec configures the codec used for artifact bundles.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithArtifactStore enables the artifact cache on the given store.
// Without a store, every build recomputes the vocabulary table and the
// prime/multiplier setup from scratch.
func WithArtifactStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithCompression selects the artifact payload compression.
// The default is zstd.
func WithCompression(c artifact.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceConfig bounds the build phase: vocabulary decode
// concurrency and artifact IO throughput.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithLogger configures structured logging. Build logs at info level,
// the forward path only at debug level and never by default.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithVocabSource supplies the vocabulary directly instead of loading
// Config.TokenizerSource from disk. Mainly for tests and callers that
// already hold a tokenizer.
func WithVocabSource(src tokenizer.VocabSource) Option {
	return func(o *options) {
		o.vocab = src
	}
}
