package artifact

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/engram/blobstore"
	"github.com/hupe1980/engram/codec"
)

func testBundle() *Bundle {
	return &Bundle{
		Fingerprint: "cafe01",
		VocabTable:  []int32{0, 1, 1, 2, 0},
		Layers: []LayerSetup{
			{
				LayerID:     1,
				Multipliers: []int64{156724873035431453, 53878490776468799, 149026513332278569},
				Primes:      [][]int64{{53, 59}, {61, 67}},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
			in := testBundle()

			data, err := Encode(in, c, comp)
			require.NoError(t, err)

			out, err := Decode(data)
			require.NoError(t, err, "comp=%d codec=%s", comp, c.Name())
			assert.Equal(t, in, out)
		}
	}
}

func TestZstdShrinksRepetitiveTables(t *testing.T) {
	b := testBundle()
	b.VocabTable = make([]int32, 50000)
	for i := range b.VocabTable {
		b.VocabTable[i] = int32(i % 128)
	}

	raw, err := Encode(b, nil, CompressionNone)
	require.NoError(t, err)
	zst, err := Encode(b, nil, CompressionZSTD)
	require.NoError(t, err)

	assert.Less(t, len(zst), len(raw)/2)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte("notabundle"))
	assert.Error(t, err)

	data, err := Encode(testBundle(), nil, CompressionZSTD)
	require.NoError(t, err)

	// Wrong version.
	bad := append([]byte(nil), data...)
	bad[4] = 99
	_, err = Decode(bad)
	assert.Error(t, err)

	// Truncated payload.
	_, err = Decode(data[:len(data)-4])
	assert.Error(t, err)

	// Unknown codec name.
	bad = bytes.Replace(data, []byte("go-json"), []byte("no-json"), 1)
	_, err = Decode(bad)
	assert.Error(t, err)
}

func TestFingerprintStability(t *testing.T) {
	type cfg struct {
		Seed    int64 `json:"seed"`
		Targets []int `json:"targets"`
	}

	a, err := Fingerprint(cfg{Seed: 0, Targets: []int{50, 50}})
	require.NoError(t, err)
	b, err := Fingerprint(cfg{Seed: 0, Targets: []int{50, 50}})
	require.NoError(t, err)
	c, err := Fingerprint(cfg{Seed: 1, Targets: []int{50, 50}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m, err := NewManager(store, nil, CompressionZSTD, nil, nil)
	require.NoError(t, err)

	_, err = m.Load(ctx, "cafe01")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	in := testBundle()
	require.NoError(t, m.Store(ctx, in))

	out, err := m.Load(ctx, "cafe01")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// A bundle stored under a name that does not match its embedded
	// fingerprint is rejected on load.
	data, err := Encode(in, nil, CompressionNone)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, blobName("beef02"), data))

	var mismatch *ErrFingerprintMismatch
	_, err = m.Load(ctx, "beef02")
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "cafe01", mismatch.Got)
}

func TestManagerRequiresStore(t *testing.T) {
	_, err := NewManager(nil, nil, CompressionNone, nil, nil)
	assert.Error(t, err)
}
