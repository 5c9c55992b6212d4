package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsAgreeOnWireFormat(t *testing.T) {
	type payload struct {
		Table  []int32 `json:"table"`
		Primes []int64 `json:"primes"`
	}

	in := payload{Table: []int32{0, 1, 1, 2}, Primes: []int64{53, 59}}

	stdBytes, err := (JSON{}).Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, (GoJSON{}).Unmarshal(stdBytes, &out))
	assert.Equal(t, in, out)

	goBytes, err := (GoJSON{}).Marshal(in)
	require.NoError(t, err)

	out = payload{}
	require.NoError(t, (JSON{}).Unmarshal(goBytes, &out))
	assert.Equal(t, in, out)
}
