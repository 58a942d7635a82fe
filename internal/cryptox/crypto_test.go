package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T, seed byte) *Cipher {
	t.Helper()
	key := bytes.Repeat([]byte{seed}, KeySize)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	key2 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)

	key3 := DeriveKey([]byte("secret-password"), []byte("other-salt"))
	assert.NotEqual(t, key1, key3, "different salts must give different keys")
}

func TestKeyFromConfig(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, KeySize)

	got, err := KeyFromConfig(base64.URLEncoding.EncodeToString(raw), "salt")
	require.NoError(t, err)
	assert.Equal(t, raw, got, "32-byte base64 key is used as-is")

	got, err = KeyFromConfig("please_change_this_encryption_key", "salt")
	require.NoError(t, err)
	assert.Equal(t, DeriveKey([]byte("please_change_this_encryption_key"), []byte("salt")), got)

	_, err = KeyFromConfig("   ", "salt")
	assert.Error(t, err)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	c := newTestCipher(t, 1)
	r := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{1, 120, 128, 512} {
		v := make(biometric.Vector, n)
		for i := range v {
			v[i] = r.Float64()*2 - 1
		}
		blob, err := c.Seal(v)
		require.NoError(t, err)

		got, err := c.Open(blob)
		require.NoError(t, err)
		assert.Equal(t, v, got, "round trip must be exact for n=%d", n)
	}
}

func TestSeal_IsNotPlaintext(t *testing.T) {
	c := newTestCipher(t, 1)
	blob, err := c.Seal(biometric.Vector{0.5, 0.25})
	require.NoError(t, err)
	assert.False(t, bytes.Contains(blob, []byte("0.25")))

	blob2, err := c.Seal(biometric.Vector{0.5, 0.25})
	require.NoError(t, err)
	assert.NotEqual(t, blob, blob2, "nonce must be fresh per seal")
}

func TestSeal_RejectsBadVectors(t *testing.T) {
	c := newTestCipher(t, 1)
	_, err := c.Seal(nil)
	assert.Error(t, err)
	_, err = c.Seal(biometric.Vector{math.NaN()})
	assert.Error(t, err)
}

func TestOpen_Failures(t *testing.T) {
	c := newTestCipher(t, 1)
	other := newTestCipher(t, 2)

	blob, err := c.Seal(biometric.Vector{1, 2, 3})
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff

	notJSON, err := c.SealBytes([]byte("not a vector"))
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":        nil,
		"truncated":    blob[:10],
		"tampered":     tampered,
		"not a vector": notJSON,
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Open(b)
			assert.True(t, errors.Is(err, common.ErrDecryption), "got %v", err)
		})
	}

	t.Run("foreign key", func(t *testing.T) {
		_, err := other.Open(blob)
		assert.True(t, errors.Is(err, common.ErrDecryption))
	})
}
