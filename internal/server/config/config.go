// Package config handles configuration for the server component: defaults,
// a JSON or YAML file overlay, BIOKEEPER_* environment variables and
// command-line flags, applied in that order.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the biokeeper server.
//
// Fields:
//   - EndpointAddrGRPC / EndpointAddrHTTP: bind addresses of the two transports.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects in-memory repositories.
//   - SecretKey: HMAC secret for caller JWTs (HS256); AuthEnabled turns checking on.
//   - EncryptionKey / EncryptionSalt: descriptor cipher key material.
//   - Face*/Voice*/Cosine*/Norm*: match decision parameters.
//   - LivenessMotionThreshold: minimum motion score to start a session.
//   - RateLimit*/Redis*: verification attempt limiting; empty RedisAddr keeps
//     counters in process.
//   - S3*: sealed raw-media archive, used when ArchiveEnabled.
type Config struct {
	EndpointAddrGRPC            string
	EndpointAddrHTTP            string
	DatabaseDSN                 string
	SecretKey                   string
	AuthEnabled                 bool
	AccessTokenValidityDuration time.Duration
	EncryptionKey               string
	EncryptionSalt              string
	FaceEuclideanThreshold      float64
	FaceCosineThreshold         float64
	VoiceCosineThreshold        float64
	CosineEpsilon               float64
	NormEpsilon                 float64
	LivenessMotionThreshold     float64
	MaxConcurrentExtractions    int64
	ExtractionTimeout           time.Duration
	FaceEncoderURL              string
	FaceEmbedderURL             string
	RateLimitAttempts           int
	RateLimitWindow             time.Duration
	RedisAddr                   string
	RedisPassword               string
	RedisDB                     int
	ArchiveEnabled              bool
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
	TracingEnabled              bool
	LogFormat                   string
	LogLevel                    string
	ShutdownTimeout             time.Duration
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are insecure for production and must be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AuthEnabled = false
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.EncryptionKey = "dev-encryption-key"
	c.EncryptionSalt = "biokeeper"
	c.FaceEuclideanThreshold = 0.6
	c.FaceCosineThreshold = 0.3
	c.VoiceCosineThreshold = 0.3
	c.CosineEpsilon = 1e-8
	c.NormEpsilon = 1e-8
	c.LivenessMotionThreshold = 0.02
	c.MaxConcurrentExtractions = 4
	c.ExtractionTimeout = 10 * time.Second
	c.RateLimitAttempts = 0
	c.RateLimitWindow = time.Minute
	c.RedisDB = 0
	c.ArchiveEnabled = false
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "biometrics"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.TracingEnabled = false
	c.LogFormat = "json"
	c.LogLevel = "info"
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig builds a Config from defaults, the optional config file, the
// environment and finally the command line. It panics on an unreadable or
// malformed file, bad environment values or bad flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()

	args := os.Args[1:]
	if err := parseFile(cfg, args); err != nil {
		panic(err)
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		panic(err)
	}
	if err := parseFlags(cfg, args); err != nil {
		panic(err)
	}
	return cfg
}
