// Package config loads runtime configuration for biokeeperctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: BIOKEEPER_SERVER_ADDR and BIOKEEPER_ACCESS_TOKEN.
//  3. Global command-line flags placed before the subcommand.
//
// Supported flags
//
//	-a string   address:port of the BiometricService gRPC endpoint
//	-k string   access token sent as "access_token" metadata
//	-w int      per-request timeout (seconds)
//
// Everything after the first non-flag argument is returned untouched for
// the subcommand to parse.
package config
