package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// whitespaceSentinel prefixes grouping keys for tokens whose normalized
// form is empty or all-whitespace. Keying those by the raw token keeps
// distinct whitespace-only tokens (" ", "\n\n", "\t") from merging.
const whitespaceSentinel = "\x00ws\x00"

// replacementChar is the undecodable-byte marker produced by byte-level
// decoders for incomplete UTF-8 sequences.
const replacementChar = '�'

// accentStripper removes combining marks after compatibility
// decomposition: NFKC folds width/ligature variants, NFD exposes the
// marks, runes.Remove drops them.
var accentStripper = transform.Chain(norm.NFKC, norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// normalizeKey computes the grouping key for one vocabulary entry.
//
// decoded is the decoder output for the id, raw the unmapped token
// string. When the decoder could not produce valid text the raw string
// is the key, so byte-fragment tokens stay distinct.
func normalizeKey(decoded, raw string) string {
	if strings.ContainsRune(decoded, replacementChar) {
		return raw
	}

	s, _, err := transform.String(accentStripper, decoded)
	if err != nil {
		s = decoded
	}

	s = strings.ToLower(s)
	s = collapseWhitespace(s)

	if s == "" || isAllWhitespace(s) {
		return whitespaceSentinel + raw
	}

	return s
}

// collapseWhitespace reduces every run of Unicode whitespace to a
// single ASCII space. Leading/trailing runs are kept (as one space)
// because " the" and "the" are distinct vocabulary entries.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}

	return b.String()
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
