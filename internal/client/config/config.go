package config

import (
	"os"
	"time"
)

const (
	EnvServerAddr  = "BIOKEEPER_SERVER_ADDR"
	EnvAccessToken = "BIOKEEPER_ACCESS_TOKEN"
)

// Config holds runtime settings for biokeeperctl.
type Config struct {
	ServerEndpointAddr string
	AccessToken        string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AccessToken = ""
	c.RequestTimeout = 30 * time.Second
}

func parseEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServerAddr); ok && v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v, ok := lookup(EnvAccessToken); ok {
		cfg.AccessToken = v
	}
}

// LoadConfig applies defaults, environment and the global flags in args
// (os.Args[1:] style). It returns the config and the remaining arguments,
// starting with the subcommand.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg, os.LookupEnv)
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rest, nil
}
