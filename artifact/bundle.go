// Package artifact caches the expensive, deterministic parts of model
// construction.
//
// Building an engram model decodes the entire original vocabulary and
// searches primes for every (layer, order, head). Both are pure
// functions of the configuration, so the results are bundled, tagged
// with a configuration fingerprint and stored in a blobstore. A later
// build with the same fingerprint restores the bundle instead of
// recomputing.
package artifact

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/engram/codec"
)

// Bundle is the cached output of a model build.
type Bundle struct {
	// Fingerprint identifies the configuration the bundle was built
	// from.
	Fingerprint string `json:"fingerprint"`

	// VocabTable is the compressed-tokenizer lookup table.
	VocabTable []int32 `json:"vocab_table"`

	// Layers holds the per-layer multiplier and prime assignments.
	Layers []LayerSetup `json:"layers"`
}

// LayerSetup is one layer's deterministic hash setup.
type LayerSetup struct {
	LayerID     int       `json:"layer_id"`
	Multipliers []int64   `json:"multipliers"`
	Primes      [][]int64 `json:"primes"`
}

// Fingerprint hashes a configuration value into a stable hex string.
// Uses standard-library JSON: struct field order is fixed, so the
// encoding is canonical for a given struct type.
func Fingerprint(cfg any) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

const (
	bundleVersion = 1
)

// bundleMagic guards against feeding arbitrary blobs to Decode.
var bundleMagic = [4]byte{'E', 'N', 'G', 'M'}

// ErrFingerprintMismatch is returned when a cached bundle was built
// from a different configuration than the one requesting it.
type ErrFingerprintMismatch struct {
	Want string
	Got  string
}

func (e *ErrFingerprintMismatch) Error() string {
	return fmt.Sprintf("artifact: bundle fingerprint %s does not match configuration %s", e.Got, e.Want)
}

// Encode serializes the bundle into a self-describing blob:
// magic, version, codec name, compression type, then the compressed
// payload block.
func Encode(b *Bundle, c codec.Codec, comp Compression) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}

	payload, err := c.Marshal(b)
	if err != nil {
		return nil, err
	}

	block, err := compressBlock(payload, comp)
	if err != nil {
		return nil, err
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("artifact: codec name %q too long", name)
	}

	out := make([]byte, 0, 4+1+1+len(name)+1+4+len(block))
	out = append(out, bundleMagic[:]...)
	out = append(out, bundleVersion)
	out = append(out, byte(len(name)))
	out = append(out, name...)
	out = append(out, byte(comp))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(block)))
	out = append(out, block...)

	return out, nil
}

// Decode parses a blob produced by Encode, selecting the codec by the
// name recorded in the header.
func Decode(data []byte) (*Bundle, error) {
	if len(data) < 6 || [4]byte(data[:4]) != bundleMagic {
		return nil, errors.New("artifact: not an engram bundle")
	}
	if data[4] != bundleVersion {
		return nil, fmt.Errorf("artifact: unsupported bundle version %d", data[4])
	}

	nameLen := int(data[5])
	rest := data[6:]
	if len(rest) < nameLen+1+4 {
		return nil, errors.New("artifact: truncated bundle header")
	}

	name := string(rest[:nameLen])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("artifact: unknown codec %q", name)
	}

	comp := Compression(rest[nameLen])
	blockLen := binary.LittleEndian.Uint32(rest[nameLen+1:])
	block := rest[nameLen+1+4:]
	if uint32(len(block)) < blockLen {
		return nil, errors.New("artifact: truncated bundle payload")
	}

	payload, err := decompressBlock(block[:blockLen], comp)
	if err != nil {
		return nil, err
	}

	var b Bundle
	if err := c.Unmarshal(payload, &b); err != nil {
		return nil, err
	}

	return &b, nil
}
