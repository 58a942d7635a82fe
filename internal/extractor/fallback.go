package extractor

import (
	"crypto/sha256"
	"hash/crc32"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
)

// FallbackLength is the length of a deterministic fallback descriptor.
const FallbackLength = 128

var seedPrefix = regexp.MustCompile(`^([a-z0-9]+)_`)

// SeedKey picks the seed for a fallback descriptor. A filename such as
// "john_selfie.jpg" seeds with its leading token ("john"), so fixtures that
// share a prefix produce the same descriptor; anything else seeds with the
// decimal CRC-32 of the content.
func SeedKey(filename string, data []byte) string {
	name := strings.ToLower(strings.TrimSpace(filename))
	if name != "" {
		name = filepath.Base(name)
	}
	if m := seedPrefix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 10)
}

// FallbackVector draws n values uniformly from [-1, 1) out of a ChaCha8
// stream keyed by SHA-256(seedKey).
func FallbackVector(seedKey string, n int) biometric.Vector {
	r := rand.New(rand.NewChaCha8(sha256.Sum256([]byte(seedKey))))
	v := make(biometric.Vector, n)
	for i := range v {
		v[i] = r.Float64()*2 - 1
	}
	return v
}
