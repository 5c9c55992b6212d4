package engram

import (
	"math"
	"math/rand/v2"

	"github.com/hupe1980/engram/conv"
	"github.com/hupe1980/engram/embedding"
	"github.com/hupe1980/engram/internal/math32"
	"github.com/hupe1980/engram/ngram"
)

// gateEps floors the gate-logit magnitude inside the sign-preserving
// square root.
const gateEps = 1e-6

// layer is one engram layer: hash mapping, embedding table, per-branch
// gate/value projections and the causal local mixer. Stateless across
// forward calls; everything here is read-only after construction.
type layer struct {
	mapping *ngram.Mapping
	embed   *embedding.MultiHead
	conv    *conv.ShortConv

	keyW [][]float32 // per branch, hiddenSize x featDim, row-major
	valW [][]float32

	featDim    int
	hiddenSize int
	hcMult     int
}

func newLayer(cfg Config, mapping *ngram.Mapping, headSizes []int) (*layer, error) {
	if len(headSizes) != mapping.TotalHeads() {
		return nil, &ErrShapeMismatch{
			What:     "embedding head-size list",
			Expected: mapping.TotalHeads(),
			Actual:   len(headSizes),
		}
	}

	layerSeed := cfg.Seed + int64(mapping.LayerID())

	embed, err := embedding.NewMultiHead(headSizes, cfg.EmbedDimPerOrder, layerSeed)
	if err != nil {
		return nil, err
	}

	featDim := mapping.TotalHeads() * cfg.EmbedDimPerOrder

	keyW := make([][]float32, cfg.HCMult)
	valW := make([][]float32, cfg.HCMult)
	scale := float32(1 / math.Sqrt(float64(featDim)))
	for i := range keyW {
		keyW[i] = initProjection(layerSeed, 2*uint64(i), cfg.HiddenSize*featDim, scale)
		valW[i] = initProjection(layerSeed, 2*uint64(i)+1, cfg.HiddenSize*featDim, scale)
	}

	sc, err := conv.NewShortConv(cfg.HCMult, cfg.HiddenSize, cfg.ConvKernelSize, cfg.ConvDilation, !cfg.NoConvActivation, layerSeed)
	if err != nil {
		return nil, err
	}

	return &layer{
		mapping:    mapping,
		embed:      embed,
		conv:       sc,
		keyW:       keyW,
		valW:       valW,
		featDim:    featDim,
		hiddenSize: cfg.HiddenSize,
		hcMult:     cfg.HCMult,
	}, nil
}

func initProjection(seed int64, stream uint64, n int, scale float32) []float32 {
	rng := rand.New(rand.NewPCG(uint64(seed), stream^0x9E3779B97F4A7C15))

	w := make([]float32, n)
	for i := range w {
		w[i] = (rng.Float32()*2 - 1) * scale
	}

	return w
}

// forward computes the layer's residual contribution
// [batch, seqLen, hcMult, hiddenSize] from the backbone hidden state of
// the same shape and the compressed token ids [batch, seqLen].
func (l *layer) forward(hidden []float32, tokens []int64, batch, seqLen int) ([]float32, error) {
	if want := batch * seqLen * l.hcMult * l.hiddenSize; len(hidden) != want {
		return nil, &ErrShapeMismatch{What: "hidden state", Expected: want, Actual: len(hidden)}
	}

	hashIDs, err := l.mapping.Hash(tokens, batch, seqLen)
	if err != nil {
		return nil, err
	}

	emb, err := l.embed.Forward(hashIDs, batch, seqLen)
	if err != nil {
		return nil, err
	}

	// Gate and value, per position and branch. The per-order/per-head
	// embedding axes flatten into one feature vector per position.
	value := make([]float32, len(hidden))
	key := make([]float32, l.hiddenSize)
	normKey := make([]float32, l.hiddenSize)
	normQuery := make([]float32, l.hiddenSize)

	invSqrtHidden := float32(1 / math.Sqrt(float64(l.hiddenSize)))

	for p := 0; p < batch*seqLen; p++ {
		feat := emb[p*l.featDim : (p+1)*l.featDim]

		for i := 0; i < l.hcMult; i++ {
			branchOff := (p*l.hcMult + i) * l.hiddenSize
			query := hidden[branchOff : branchOff+l.hiddenSize]

			math32.MatVec(key, l.keyW[i], feat)
			math32.RMSNormPlain(normKey, key)
			math32.RMSNormPlain(normQuery, query)

			raw := math32.Dot(normKey, normQuery) * invSqrtHidden
			gate := math32.Sigmoid(math32.SignedSqrt(raw, gateEps))

			out := value[branchOff : branchOff+l.hiddenSize]
			math32.MatVec(out, l.valW[i], feat)
			math32.ScaleInPlace(out, gate)
		}
	}

	// Local causal mix; the conv output rides on top of the gated
	// values as the layer's residual contribution.
	mixed, err := l.conv.Forward(value, batch, seqLen)
	if err != nil {
		return nil, err
	}
	math32.AddInPlace(mixed, value)

	return mixed, nil
}
