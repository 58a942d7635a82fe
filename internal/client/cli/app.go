package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/biokeeper/internal/client/client"
	"github.com/dmitrijs2005/biokeeper/internal/client/config"
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage error")

// API is the subset of the gRPC client the commands need.
type API interface {
	Ping(ctx context.Context) error
	Enroll(ctx context.Context, in client.Capture) (map[string]any, error)
	Verify(ctx context.Context, in client.Capture) (map[string]any, error)
	VerifyAndLog(ctx context.Context, in client.Capture, sc client.SessionCheck) (map[string]any, error)
	StartSession(ctx context.Context, in client.StartSession) (map[string]any, error)
	SubmitSession(ctx context.Context, sessionID, userID int64) (map[string]any, error)
	SessionMetrics(ctx context.Context, sessionID int64) (map[string]any, error)
	Close() error
}

type dialFunc func(addr, token string) (API, error)

type App struct {
	config *config.Config
	dial   dialFunc
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		dial: func(addr, token string) (API, error) {
			return client.NewGRPCClient(addr, token)
		},
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

const usage = `usage: biokeeperctl [-a addr] [-k token] [-w secs] <command> [flags]

commands:
  token           mint an access token for a user
  ping            check the server is reachable
  enroll          enroll a face or voice capture
  verify          verify a capture, logging it when -session is set
  liveness        score two frames with the motion heuristic
  session-start   start an exam session
  session-submit  complete an exam session
  metrics         show FRR/FAR for a session
`

// Run executes the subcommand in args and prints its result.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.errOut, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "token":
		return a.Token(rest)
	case "liveness":
		return a.Liveness(rest)
	}

	handler, ok := a.remoteCommands()[cmd]
	if !ok {
		fmt.Fprintf(a.errOut, "unknown command %q\n\n%s", cmd, usage)
		return ErrUsage
	}

	api, err := a.dial(a.config.ServerEndpointAddr, a.config.AccessToken)
	if err != nil {
		return fmt.Errorf("connect %s: %w", a.config.ServerEndpointAddr, err)
	}
	defer api.Close()

	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}

	return handler(ctx, api, rest)
}

type remoteCommand func(ctx context.Context, api API, args []string) error

func (a *App) remoteCommands() map[string]remoteCommand {
	return map[string]remoteCommand{
		"ping":           a.Ping,
		"enroll":         a.Enroll,
		"verify":         a.Verify,
		"session-start":  a.SessionStart,
		"session-submit": a.SessionSubmit,
		"metrics":        a.Metrics,
	}
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
