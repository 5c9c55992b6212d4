package engram

import (
	"fmt"

	"github.com/hupe1980/engram/ngram"
)

// Config is the construction surface of an engram model.
//
// Everything here is deterministic input: two builds from an identical
// Config (and identical vocabulary content) produce identical hash
// setups, which is what makes the artifact cache sound.
type Config struct {
	// TokenizerSource is the path of a {token: id} JSON vocabulary.
	// Ignored when an explicit vocabulary source option is given.
	TokenizerSource string

	// TargetVocabSize holds per-order hash index-space targets, one
	// entry per n-gram order 2..MaxNgramSize.
	TargetVocabSize []int

	// MaxNgramSize is the largest n-gram window; must be >= 2.
	MaxNgramSize int

	// EmbedDimPerOrder is the embedding dimension of each hash head.
	EmbedDimPerOrder int

	// HeadsPerOrder is the number of hash heads per n-gram order.
	HeadsPerOrder int

	// LayerIDs lists the backbone layers carrying an engram layer.
	LayerIDs []int

	// PadID fills missing left context; must be a valid compressed id.
	PadID int64

	// Seed drives multiplier derivation and weight initialization.
	Seed int64

	// ConvKernelSize is the ShortConv kernel width.
	ConvKernelSize int

	// HiddenSize is the backbone hidden dimension.
	HiddenSize int

	// HCMult is the number of hyper-connection branches. 0 means 1.
	HCMult int

	// ConvDilation widens the ShortConv receptive field. 0 means
	// MaxNgramSize.
	ConvDilation int

	// NoConvActivation disables the SiLU after the causal convolution.
	NoConvActivation bool
}

// withDefaults returns a copy with optional fields resolved.
func (c Config) withDefaults() Config {
	if c.HCMult == 0 {
		c.HCMult = 1
	}
	if c.ConvDilation == 0 {
		c.ConvDilation = c.MaxNgramSize
	}

	return c
}

// Validate checks the configuration, returning a descriptive error for
// the first violation found.
func (c Config) Validate() error {
	if c.MaxNgramSize < 2 {
		return fmt.Errorf("engram: max n-gram size must be >= 2, got %d", c.MaxNgramSize)
	}
	if got, want := len(c.TargetVocabSize), c.MaxNgramSize-1; got != want {
		return fmt.Errorf("engram: %d target vocabulary sizes for orders 2..%d, want %d", got, c.MaxNgramSize, want)
	}

	maxTarget := 0
	for i, v := range c.TargetVocabSize {
		if v < 2 {
			return fmt.Errorf("engram: target vocabulary size for order %d must be >= 2, got %d", i+2, v)
		}
		if v > maxTarget {
			maxTarget = v
		}
	}
	if _, err := ngram.HalfBound(maxTarget); err != nil {
		return err
	}

	if c.EmbedDimPerOrder <= 0 {
		return fmt.Errorf("engram: embed dim per order must be positive, got %d", c.EmbedDimPerOrder)
	}
	if c.HeadsPerOrder <= 0 {
		return fmt.Errorf("engram: heads per order must be positive, got %d", c.HeadsPerOrder)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("engram: hidden size must be positive, got %d", c.HiddenSize)
	}
	if c.ConvKernelSize <= 0 {
		return fmt.Errorf("engram: conv kernel size must be positive, got %d", c.ConvKernelSize)
	}
	if c.HCMult < 0 {
		return fmt.Errorf("engram: hyper-connection multiplier must be >= 0, got %d", c.HCMult)
	}
	if c.ConvDilation < 0 {
		return fmt.Errorf("engram: conv dilation must be >= 0, got %d", c.ConvDilation)
	}
	if c.PadID < 0 {
		return fmt.Errorf("engram: pad id must be >= 0, got %d", c.PadID)
	}

	if len(c.LayerIDs) == 0 {
		return ErrNoLayers
	}
	seen := make(map[int]bool, len(c.LayerIDs))
	for _, id := range c.LayerIDs {
		if seen[id] {
			return fmt.Errorf("engram: duplicate layer id %d", id)
		}
		seen[id] = true
	}

	return nil
}

// fingerprintView is the subset of Config that determines cached
// artifacts. Weight init and conv shape knobs are excluded: they do
// not influence the vocab table or the prime/multiplier setup.
type fingerprintView struct {
	TokenizerSource string `json:"tokenizer_source"`
	TargetVocabSize []int  `json:"target_vocab_size"`
	MaxNgramSize    int    `json:"max_ngram_size"`
	HeadsPerOrder   int    `json:"heads_per_order"`
	LayerIDs        []int  `json:"layer_ids"`
	PadID           int64  `json:"pad_id"`
	Seed            int64  `json:"seed"`
}

func (c Config) fingerprintInput() fingerprintView {
	return fingerprintView{
		TokenizerSource: c.TokenizerSource,
		TargetVocabSize: c.TargetVocabSize,
		MaxNgramSize:    c.MaxNgramSize,
		HeadsPerOrder:   c.HeadsPerOrder,
		LayerIDs:        c.LayerIDs,
		PadID:           c.PadID,
		Seed:            c.Seed,
	}
}
