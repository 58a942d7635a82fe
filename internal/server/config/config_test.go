package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Empty(t, c.DatabaseDSN)
	assert.False(t, c.AuthEnabled)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 0.6, c.FaceEuclideanThreshold)
	assert.Equal(t, 0.3, c.FaceCosineThreshold)
	assert.Equal(t, 0.3, c.VoiceCosineThreshold)
	assert.Equal(t, 1e-8, c.CosineEpsilon)
	assert.Equal(t, 1e-8, c.NormEpsilon)
	assert.Equal(t, 0.02, c.LivenessMotionThreshold)
	assert.EqualValues(t, 4, c.MaxConcurrentExtractions)
	assert.Equal(t, 10*time.Second, c.ExtractionTimeout)
	assert.Equal(t, time.Minute, c.RateLimitWindow)
	assert.Equal(t, "biometrics", c.S3Bucket)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix) {
			t.Skip("BIOKEEPER_ variables are set in the test environment")
		}
	}

	c := LoadConfig()
	require.NotNil(t, c, "LoadConfig must not return nil")

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want, *c)
}

func TestLoadConfig_PanicsOnMissingFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-c", "/does/not/exist.json"}

	assert.Panics(t, func() { LoadConfig() })
}
