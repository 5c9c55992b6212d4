package tokenizer

import (
	"fmt"
	"os"
	"strings"

	gojson "github.com/goccy/go-json"
)

// VocabSource supplies the original vocabulary to compress.
//
// Implementations must be safe for concurrent Decode/TokenString calls;
// the builder decodes ids in parallel.
type VocabSource interface {
	// Size returns the number of ids in the original vocabulary.
	Size() int

	// Decode returns the text form of a single id. Undecodable bytes
	// are reported via U+FFFD in the result, not via error.
	Decode(id int) (string, error)

	// TokenString returns the raw token string for an id, unmapped.
	TokenString(id int) (string, error)
}

// ErrVocabLoad wraps a failure to load tokenizer resources.
//
// The underlying cause can be accessed via errors.Unwrap.
type ErrVocabLoad struct {
	Source string
	cause  error
}

func (e *ErrVocabLoad) Error() string {
	return fmt.Sprintf("tokenizer: load vocabulary %q: %v", e.Source, e.cause)
}

func (e *ErrVocabLoad) Unwrap() error { return e.cause }

// JSONVocab is a VocabSource backed by a {token: id} JSON vocabulary
// file, the format used by GPT-2 style byte-level tokenizers.
//
// Byte-level marker characters are mapped back for decoding:
// U+0120 (Ġ) to space and U+010A (Ċ) to newline.
type JSONVocab struct {
	tokens []string
}

// LoadJSONVocab reads a {token: id} JSON file. Load failure is fatal
// with cause; callers must not retry.
func LoadJSONVocab(path string) (*JSONVocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrVocabLoad{Source: path, cause: err}
	}

	var raw map[string]int
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return nil, &ErrVocabLoad{Source: path, cause: err}
	}

	return NewJSONVocab(raw)
}

// NewJSONVocab builds a JSONVocab from an in-memory {token: id} map.
// Ids must form a dense range starting at 0.
func NewJSONVocab(raw map[string]int) (*JSONVocab, error) {
	tokens := make([]string, len(raw))
	seen := make([]bool, len(raw))

	for tok, id := range raw {
		if id < 0 || id >= len(raw) {
			return nil, fmt.Errorf("tokenizer: vocabulary id %d out of range [0,%d)", id, len(raw))
		}
		if seen[id] {
			return nil, fmt.Errorf("tokenizer: duplicate vocabulary id %d", id)
		}
		seen[id] = true
		tokens[id] = tok
	}

	return &JSONVocab{tokens: tokens}, nil
}

// Size returns the number of ids in the vocabulary.
func (v *JSONVocab) Size() int { return len(v.tokens) }

// Decode maps byte-level markers back and returns the text form.
func (v *JSONVocab) Decode(id int) (string, error) {
	tok, err := v.TokenString(id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(tok))
	for _, r := range tok {
		switch r {
		case 'Ġ':
			b.WriteByte(' ')
		case 'Ċ':
			b.WriteByte('\n')
		default:
			b.WriteRune(r)
		}
	}

	return b.String(), nil
}

// TokenString returns the raw token string.
func (v *JSONVocab) TokenString(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", fmt.Errorf("tokenizer: id %d out of range [0,%d)", id, len(v.tokens))
	}

	return v.tokens[id], nil
}

// SliceVocab is a VocabSource over a plain token slice, mainly for
// tests and synthetic vocabularies.
type SliceVocab []string

// Size returns the number of ids.
func (v SliceVocab) Size() int { return len(v) }

// Decode returns the token itself.
func (v SliceVocab) Decode(id int) (string, error) {
	return v.TokenString(id)
}

// TokenString returns the token at id.
func (v SliceVocab) TokenString(id int) (string, error) {
	if id < 0 || id >= len(v) {
		return "", fmt.Errorf("tokenizer: id %d out of range [0,%d)", id, len(v))
	}

	return v[id], nil
}
