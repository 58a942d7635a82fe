package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/biokeeper/internal/flagx"
	"github.com/dmitrijs2005/biokeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// files may say "30s" as well as integer nanoseconds. The same tags name the
// BIOKEEPER_* environment variables.
type FileConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AuthEnabled                 bool           `json:"auth_enabled" yaml:"auth_enabled"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	EncryptionKey               string         `json:"encryption_key" yaml:"encryption_key"`
	EncryptionSalt              string         `json:"encryption_salt" yaml:"encryption_salt"`
	FaceEuclideanThreshold      float64        `json:"face_euclidean_threshold" yaml:"face_euclidean_threshold"`
	FaceCosineThreshold         float64        `json:"face_cosine_threshold" yaml:"face_cosine_threshold"`
	VoiceCosineThreshold        float64        `json:"voice_cosine_threshold" yaml:"voice_cosine_threshold"`
	CosineEpsilon               float64        `json:"cosine_epsilon" yaml:"cosine_epsilon"`
	NormEpsilon                 float64        `json:"norm_epsilon" yaml:"norm_epsilon"`
	LivenessMotionThreshold     float64        `json:"liveness_motion_threshold" yaml:"liveness_motion_threshold"`
	MaxConcurrentExtractions    int64          `json:"max_concurrent_extractions" yaml:"max_concurrent_extractions"`
	ExtractionTimeout           timex.Duration `json:"extraction_timeout" yaml:"extraction_timeout"`
	FaceEncoderURL              string         `json:"face_encoder_url" yaml:"face_encoder_url"`
	FaceEmbedderURL             string         `json:"face_embedder_url" yaml:"face_embedder_url"`
	RateLimitAttempts           int            `json:"rate_limit_attempts" yaml:"rate_limit_attempts"`
	RateLimitWindow             timex.Duration `json:"rate_limit_window" yaml:"rate_limit_window"`
	RedisAddr                   string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword               string         `json:"redis_password" yaml:"redis_password"`
	RedisDB                     int            `json:"redis_db" yaml:"redis_db"`
	ArchiveEnabled              bool           `json:"archive_enabled" yaml:"archive_enabled"`
	S3RootUser                  string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	TracingEnabled              bool           `json:"tracing_enabled" yaml:"tracing_enabled"`
	LogFormat                   string         `json:"log_format" yaml:"log_format"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
	ShutdownTimeout             timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

func toFile(c *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC:            c.EndpointAddrGRPC,
		EndpointAddrHTTP:            c.EndpointAddrHTTP,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AuthEnabled:                 c.AuthEnabled,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		EncryptionKey:               c.EncryptionKey,
		EncryptionSalt:              c.EncryptionSalt,
		FaceEuclideanThreshold:      c.FaceEuclideanThreshold,
		FaceCosineThreshold:         c.FaceCosineThreshold,
		VoiceCosineThreshold:        c.VoiceCosineThreshold,
		CosineEpsilon:               c.CosineEpsilon,
		NormEpsilon:                 c.NormEpsilon,
		LivenessMotionThreshold:     c.LivenessMotionThreshold,
		MaxConcurrentExtractions:    c.MaxConcurrentExtractions,
		ExtractionTimeout:           timex.Duration{Duration: c.ExtractionTimeout},
		FaceEncoderURL:              c.FaceEncoderURL,
		FaceEmbedderURL:             c.FaceEmbedderURL,
		RateLimitAttempts:           c.RateLimitAttempts,
		RateLimitWindow:             timex.Duration{Duration: c.RateLimitWindow},
		RedisAddr:                   c.RedisAddr,
		RedisPassword:               c.RedisPassword,
		RedisDB:                     c.RedisDB,
		ArchiveEnabled:              c.ArchiveEnabled,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		TracingEnabled:              c.TracingEnabled,
		LogFormat:                   c.LogFormat,
		LogLevel:                    c.LogLevel,
		ShutdownTimeout:             timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func (f *FileConfig) apply(c *Config) {
	c.EndpointAddrGRPC = f.EndpointAddrGRPC
	c.EndpointAddrHTTP = f.EndpointAddrHTTP
	c.DatabaseDSN = f.DatabaseDSN
	c.SecretKey = f.SecretKey
	c.AuthEnabled = f.AuthEnabled
	c.AccessTokenValidityDuration = f.AccessTokenValidityDuration.Duration
	c.EncryptionKey = f.EncryptionKey
	c.EncryptionSalt = f.EncryptionSalt
	c.FaceEuclideanThreshold = f.FaceEuclideanThreshold
	c.FaceCosineThreshold = f.FaceCosineThreshold
	c.VoiceCosineThreshold = f.VoiceCosineThreshold
	c.CosineEpsilon = f.CosineEpsilon
	c.NormEpsilon = f.NormEpsilon
	c.LivenessMotionThreshold = f.LivenessMotionThreshold
	c.MaxConcurrentExtractions = f.MaxConcurrentExtractions
	c.ExtractionTimeout = f.ExtractionTimeout.Duration
	c.FaceEncoderURL = f.FaceEncoderURL
	c.FaceEmbedderURL = f.FaceEmbedderURL
	c.RateLimitAttempts = f.RateLimitAttempts
	c.RateLimitWindow = f.RateLimitWindow.Duration
	c.RedisAddr = f.RedisAddr
	c.RedisPassword = f.RedisPassword
	c.RedisDB = f.RedisDB
	c.ArchiveEnabled = f.ArchiveEnabled
	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.TracingEnabled = f.TracingEnabled
	c.LogFormat = f.LogFormat
	c.LogLevel = f.LogLevel
	c.ShutdownTimeout = f.ShutdownTimeout.Duration
}

// parseFile overlays the file named by -c/-config onto config. Keys missing
// from the file keep their current values. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := toFile(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}
