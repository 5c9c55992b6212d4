package engram

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engram/blobstore"
	"github.com/hupe1980/engram/testutil"
	"github.com/hupe1980/engram/tokenizer"
)

func testVocab() tokenizer.SliceVocab {
	vocab := make(tokenizer.SliceVocab, 50)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("tok%d", i)
	}

	return vocab
}

func testModelConfig() Config {
	return Config{
		TargetVocabSize:  []int{50, 50},
		MaxNgramSize:     3,
		EmbedDimPerOrder: 4,
		HeadsPerOrder:    2,
		LayerIDs:         []int{1},
		PadID:            0,
		Seed:             0,
		ConvKernelSize:   3,
		HiddenSize:       8,
		HCMult:           2,
	}
}

func buildTestModel(t *testing.T, opts ...Option) *Model {
	t.Helper()

	opts = append(opts, WithVocabSource(testVocab()), WithLogger(NoopLogger()))
	m, err := Build(context.Background(), testModelConfig(), opts...)
	require.NoError(t, err)

	return m
}

func TestEndToEndGoldenHashes(t *testing.T) {
	m := buildTestModel(t)

	heads, err := m.TotalHeads(1)
	require.NoError(t, err)
	assert.Equal(t, 4, heads)

	got, err := m.HashIDs([]int64{3, 7, 2, 9, 4}, 1, 5, 1)
	require.NoError(t, err)

	// Golden reference for seed=0, layer=1, targets [50,50], 2 heads
	// per order. Head prime bounds are 53, 59, 61, 67.
	want := []int64{
		46, 56, 15, 23,
		39, 52, 20, 7,
		14, 49, 51, 7,
		30, 52, 46, 33,
		39, 50, 18, 22,
	}
	assert.Equal(t, want, got)
}

func TestForwardShapeAndDeterminism(t *testing.T) {
	cfg := testModelConfig()

	const batch, seqLen = 2, 5
	rng := testutil.NewRNG(1)
	hidden := make([]float32, batch*seqLen*cfg.HCMult*cfg.HiddenSize)
	rng.FillUniformRange(hidden, -1, 1)
	tokens := make([]int64, batch*seqLen)
	rng.FillTokens(tokens, 50)

	a := buildTestModel(t)
	b := buildTestModel(t)

	outA, err := a.Forward(hidden, tokens, batch, seqLen, 1)
	require.NoError(t, err)
	assert.Len(t, outA, len(hidden))

	outB, err := b.Forward(hidden, tokens, batch, seqLen, 1)
	require.NoError(t, err)

	// Two builds from the same config are bit-for-bit identical.
	assert.Equal(t, outA, outB)

	// And repeated forwards on one model are too.
	again, err := a.Forward(hidden, tokens, batch, seqLen, 1)
	require.NoError(t, err)
	assert.Equal(t, outA, again)
}

func TestForwardValidation(t *testing.T) {
	m := buildTestModel(t)

	hidden := make([]float32, 1*2*2*8)
	tokens := []int64{1, 2}

	var unknown *ErrUnknownLayer
	_, err := m.Forward(hidden, tokens, 1, 2, 99)
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 99, unknown.LayerID)

	var shape *ErrShapeMismatch
	_, err = m.Forward(hidden[:5], tokens, 1, 2, 1)
	assert.ErrorAs(t, err, &shape)

	_, err = m.Forward(hidden, []int64{1}, 1, 2, 1)
	assert.Error(t, err)
}

func TestCompressThroughModel(t *testing.T) {
	m := buildTestModel(t)

	// Synthetic vocab tokens are all distinct, so compression is the
	// identity here; sentinels pass through.
	out, err := m.Compress([]int64{3, -100, 7})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, -100, 7}, out)

	assert.LessOrEqual(t, m.Tokenizer().CompressedSize(), m.Tokenizer().OriginalSize())
}

func TestArtifactCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	fresh := buildTestModel(t, WithArtifactStore(store))

	// The bundle landed in the store.
	blob, err := store.Open(ctx, fresh.Fingerprint()+".engram")
	require.NoError(t, err)
	blob.Close()

	cached := buildTestModel(t, WithArtifactStore(store))
	assert.Equal(t, fresh.Fingerprint(), cached.Fingerprint())

	const batch, seqLen = 1, 5
	rng := testutil.NewRNG(2)
	hidden := make([]float32, batch*seqLen*2*8)
	rng.FillUniformRange(hidden, -1, 1)
	tokens := []int64{3, 7, 2, 9, 4}

	outFresh, err := fresh.Forward(hidden, tokens, batch, seqLen, 1)
	require.NoError(t, err)
	outCached, err := cached.Forward(hidden, tokens, batch, seqLen, 1)
	require.NoError(t, err)

	// Restoring from cache reproduces the fresh build exactly.
	assert.Equal(t, outFresh, outCached)
}

func TestCorruptArtifactTriggersRebuild(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	fresh := buildTestModel(t, WithArtifactStore(store))

	name := fresh.Fingerprint() + ".engram"
	require.NoError(t, store.Put(ctx, name, []byte("garbage")))

	rebuilt := buildTestModel(t, WithArtifactStore(store))

	got, err := rebuilt.HashIDs([]int64{3, 7, 2, 9, 4}, 1, 5, 1)
	require.NoError(t, err)
	want, err := fresh.HashIDs([]int64{3, 7, 2, 9, 4}, 1, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// The rebuild replaced the corrupt blob with a loadable one.
	third := buildTestModel(t, WithArtifactStore(store))
	assert.Equal(t, fresh.Fingerprint(), third.Fingerprint())
}

func TestFingerprintTracksConfig(t *testing.T) {
	a := buildTestModel(t)

	cfg := testModelConfig()
	cfg.Seed = 1
	b, err := Build(context.Background(), cfg, WithVocabSource(testVocab()), WithLogger(NoopLogger()))
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestBuildRequiresTokenizer(t *testing.T) {
	_, err := Build(context.Background(), testModelConfig(), WithLogger(NoopLogger()))
	assert.ErrorIs(t, err, ErrNoTokenizer)
}

func TestConfigValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"ngram too small":       func(c *Config) { c.MaxNgramSize = 1 },
		"target list mismatch":  func(c *Config) { c.TargetVocabSize = []int{50} },
		"target too small":      func(c *Config) { c.TargetVocabSize = []int{50, 1} },
		"no layers":             func(c *Config) { c.LayerIDs = nil },
		"duplicate layers":      func(c *Config) { c.LayerIDs = []int{1, 1} },
		"zero hidden":           func(c *Config) { c.HiddenSize = 0 },
		"zero embed dim":        func(c *Config) { c.EmbedDimPerOrder = 0 },
		"zero heads":            func(c *Config) { c.HeadsPerOrder = 0 },
		"zero kernel":           func(c *Config) { c.ConvKernelSize = 0 },
		"negative pad":          func(c *Config) { c.PadID = -1 },
		"negative hc mult":      func(c *Config) { c.HCMult = -1 },
		"negative dilation":     func(c *Config) { c.ConvDilation = -1 },
		"target overflows hash": func(c *Config) { c.TargetVocabSize = []int{50, 1<<62 + 1} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := testModelConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, testModelConfig().Validate())
}
