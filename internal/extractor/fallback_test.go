package extractor

import (
	"hash/crc32"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedKey(t *testing.T) {
	data := []byte("some bytes")
	crc := strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 10)

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"prefix", "john_a.jpg", "john"},
		{"upper case prefix", "JOHN_selfie.PNG", "john"},
		{"digits", "user42_sample.wav", "user42"},
		{"path is stripped", "uploads/alice_1.jpg", "alice"},
		{"no underscore", "selfie.jpg", crc},
		{"leading underscore", "_john.jpg", crc},
		{"punctuation before underscore", "jo-hn_a.jpg", crc},
		{"empty", "", crc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeedKey(tt.filename, data))
		})
	}
}

func TestFallbackVector_Deterministic(t *testing.T) {
	a := FallbackVector("john", FallbackLength)
	b := FallbackVector("john", FallbackLength)
	require.Len(t, a, FallbackLength)
	assert.Equal(t, a, b)

	for _, x := range a {
		assert.GreaterOrEqual(t, x, -1.0)
		assert.Less(t, x, 1.0)
	}
}

func TestFallbackVector_DistinctSeeds(t *testing.T) {
	a := FallbackVector("john", FallbackLength)
	b := FallbackVector("jane", FallbackLength)
	assert.NotEqual(t, a, b)
}

func TestFallback_SamePrefixDifferentContent(t *testing.T) {
	a := FallbackVector(SeedKey("john_a.jpg", []byte{1, 2, 3}), FallbackLength)
	b := FallbackVector(SeedKey("john_b.png", []byte{9, 9, 9, 9}), FallbackLength)
	assert.Equal(t, a, b)
}

func TestFallback_UnprefixedDifferentContent(t *testing.T) {
	a := FallbackVector(SeedKey("photo.jpg", []byte("first upload")), FallbackLength)
	b := FallbackVector(SeedKey("photo.jpg", []byte("second upload")), FallbackLength)
	assert.NotEqual(t, a, b)
}
