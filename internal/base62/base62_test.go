package base62_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/serroba/redirect-engine/internal/base62"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Encode(t *testing.T) {
	codec := base62.MustNew()

	tests := []struct {
		name string
		in   uint64
		want string
	}{
		{"zero is padded", 0, "000000"},
		{"single digit", 61, "00000Z"},
		{"carries into second digit", 62, "000010"},
		{"six digits need no padding", 56800235583, "ZZZZZZ"},
		{"max uint64", math.MaxUint64, "lYGhA16ahyf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.Encode(tt.in))
		})
	}

	t.Run("respects a custom minimum width", func(t *testing.T) {
		c := base62.MustNew(base62.WithMinWidth(8))

		assert.Equal(t, "0000000a", c.Encode(10))
	})

	t.Run("disabling padding still encodes zero", func(t *testing.T) {
		c := base62.MustNew(base62.WithMinWidth(0))

		assert.Equal(t, "0", c.Encode(0))
		assert.Equal(t, "a", c.Encode(10))
	})
}

func TestCodec_Decode(t *testing.T) {
	codec := base62.MustNew()

	t.Run("decodes padded and unpadded forms", func(t *testing.T) {
		padded, err := codec.Decode("000010")
		require.NoError(t, err)

		bare, err := codec.Decode("10")
		require.NoError(t, err)

		assert.Equal(t, uint64(62), padded)
		assert.Equal(t, padded, bare)
	})

	t.Run("decodes max uint64", func(t *testing.T) {
		n, err := codec.Decode("lYGhA16ahyf")

		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), n)
	})

	t.Run("rejects characters outside the alphabet", func(t *testing.T) {
		n, err := codec.Decode("!!!")

		assert.Zero(t, n)
		require.ErrorIs(t, err, base62.ErrInvalidCharacter)

		var decodeErr *base62.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, 0, decodeErr.Position)
		assert.Equal(t, '!', decodeErr.Char)
	})

	t.Run("reports position of the first invalid character", func(t *testing.T) {
		_, err := codec.Decode("abc-def")

		var decodeErr *base62.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, 3, decodeErr.Position)
	})

	t.Run("rejects non ascii input", func(t *testing.T) {
		_, err := codec.Decode("abcé")

		assert.ErrorIs(t, err, base62.ErrInvalidCharacter)
	})

	t.Run("rejects values above max uint64", func(t *testing.T) {
		for _, s := range []string{"lYGhA16ahyg", "ZZZZZZZZZZZ", "100000000000"} {
			_, err := codec.Decode(s)

			assert.ErrorIs(t, err, base62.ErrOverflow, s)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := codec.Decode("")

		assert.ErrorIs(t, err, base62.ErrEmpty)
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := base62.MustNew()

	t.Run("decode inverts encode", func(t *testing.T) {
		values := []uint64{0, 1, 61, 62, 3843, 3844, math.MaxUint32, math.MaxInt64, math.MaxUint64 - 1, math.MaxUint64}

		r := rand.New(rand.NewPCG(1, 2))
		for range 5000 {
			values = append(values, r.Uint64())
		}

		for _, v := range values {
			got, err := codec.Decode(codec.Encode(v))

			require.NoError(t, err)
			require.Equal(t, v, got)
		}
	})

	t.Run("encode inverts decode for encoded strings", func(t *testing.T) {
		for _, s := range []string{"000000", "00000Z", "abcDEF", "lYGhA16ahyf"} {
			n, err := codec.Decode(s)
			require.NoError(t, err)

			assert.Equal(t, s, codec.Encode(n))
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("rejects short alphabets", func(t *testing.T) {
		_, err := base62.New(base62.WithAlphabet("abc"))

		assert.ErrorIs(t, err, base62.ErrInvalidAlphabet)
	})

	t.Run("rejects duplicate symbols", func(t *testing.T) {
		dup := "00123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXY"

		_, err := base62.New(base62.WithAlphabet(dup))

		assert.ErrorIs(t, err, base62.ErrInvalidAlphabet)
	})

	t.Run("custom alphabet changes the encoding", func(t *testing.T) {
		reversed := "ZYXWVUTSRQPONMLKJIHGFEDCBAzyxwvutsrqponmlkjihgfedcba9876543210"
		c := base62.MustNew(base62.WithAlphabet(reversed), base62.WithMinWidth(1))

		assert.Equal(t, "Z", c.Encode(0))

		n, err := c.Decode("Y")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})
}

func TestLookup(t *testing.T) {
	t.Run("returns the current alphabet", func(t *testing.T) {
		a, err := base62.Lookup(base62.CurrentVersion)

		require.NoError(t, err)
		assert.Equal(t, base62.AlphabetV1, a)
	})

	t.Run("fails for unknown versions", func(t *testing.T) {
		_, err := base62.Lookup(99)

		assert.ErrorIs(t, err, base62.ErrUnknownVersion)
	})
}

func TestCodec_Valid(t *testing.T) {
	codec := base62.MustNew()

	assert.True(t, codec.Valid("abcXYZ019"))
	assert.False(t, codec.Valid(""))
	assert.False(t, codec.Valid("abc_def"))
}
