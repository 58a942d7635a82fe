// Package cli implements biokeeperctl, a thin command-line front end for
// the BiometricService gRPC API.
//
// Each invocation runs one subcommand and prints the server response as
// indented JSON:
//
//	biokeeperctl [-a addr] [-k token] [-w secs] <command> [flags]
//
// Commands: token, ping, enroll, verify, liveness, session-start,
// session-submit, metrics. The token command mints an access token locally
// from the server's secret, read without echo from the terminal.
package cli
