package cli

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/client/client"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/filex"
	"github.com/dmitrijs2005/biokeeper/internal/liveness"
	"github.com/dmitrijs2005/biokeeper/internal/server/auth"
)

// MaxCaptureBytes caps uploads read from disk.
const MaxCaptureBytes = 16 << 20

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) (map[string]bool, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", fs.Name(), ErrUsage)
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set, nil
}

func requireFlags(fs *flag.FlagSet, set map[string]bool, names ...string) error {
	for _, n := range names {
		if !set[n] {
			return fmt.Errorf("%s: -%s is required: %w", fs.Name(), n, ErrUsage)
		}
	}
	return nil
}

// Token mints a JWT for -user signed with the server secret.
func (a *App) Token(args []string) error {
	fs := a.flagSet("token")
	userID := fs.Int64("user", 0, "user id")
	ttl := fs.Duration("ttl", 15*time.Minute, "token validity")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "user"); err != nil {
		return err
	}

	secret, err := GetSecret(a.errOut, "Server secret: ")
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	defer wipe(secret)

	tok, err := auth.GenerateToken(*userID, secret, *ttl)
	if err != nil {
		return err
	}
	return a.print(map[string]any{"user_id": *userID, "access_token": tok, "expires_in": ttl.String()})
}

func (a *App) Ping(ctx context.Context, api API, args []string) error {
	if err := api.Ping(ctx); err != nil {
		return err
	}
	return a.print(map[string]any{"status": "OK"})
}

type captureFlags struct {
	userID   *int64
	modality *string
	file     *string
}

func addCaptureFlags(fs *flag.FlagSet) captureFlags {
	return captureFlags{
		userID:   fs.Int64("user", 0, "user id"),
		modality: fs.String("modality", "face", "face or voice"),
		file:     fs.String("file", "", "path to the image or WAV capture"),
	}
}

func (cf captureFlags) load() (client.Capture, error) {
	data, err := filex.ReadLimited(*cf.file, MaxCaptureBytes)
	if err != nil {
		return client.Capture{}, err
	}
	return client.Capture{
		UserID:   *cf.userID,
		Modality: *cf.modality,
		Data:     data,
		Filename: filepath.Base(*cf.file),
	}, nil
}

func (a *App) Enroll(ctx context.Context, api API, args []string) error {
	fs := a.flagSet("enroll")
	cf := addCaptureFlags(fs)
	device := fs.String("device", common.DeviceInfoWebUpload, "device info recorded with the template")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "user", "file"); err != nil {
		return err
	}

	in, err := cf.load()
	if err != nil {
		return err
	}
	in.DeviceInfo = *device

	res, err := api.Enroll(ctx, in)
	if err != nil {
		return err
	}
	return a.print(res)
}

// Verify runs a plain verification, or a logged session check when
// -session is given.
func (a *App) Verify(ctx context.Context, api API, args []string) error {
	fs := a.flagSet("verify")
	cf := addCaptureFlags(fs)
	sessionID := fs.Int64("session", 0, "exam session id")
	phase := fs.String("phase", "random", "start, end or random")
	trial := fs.String("trial", "", "genuine or impostor")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "user", "file"); err != nil {
		return err
	}

	in, err := cf.load()
	if err != nil {
		return err
	}

	var res map[string]any
	if set["session"] {
		res, err = api.VerifyAndLog(ctx, in, client.SessionCheck{SessionID: *sessionID, Phase: *phase, Trial: *trial})
	} else {
		res, err = api.Verify(ctx, in)
	}
	if err != nil {
		return err
	}
	return a.print(res)
}

// Liveness scores two local frames without contacting the server.
func (a *App) Liveness(args []string) error {
	fs := a.flagSet("liveness")
	frameA := fs.String("frame-a", "", "first frame")
	frameB := fs.String("frame-b", "", "second frame")
	threshold := fs.Float64("threshold", liveness.DefaultMotionThreshold, "motion threshold")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "frame-a", "frame-b"); err != nil {
		return err
	}

	res, err := checkFrames(*frameA, *frameB, *threshold)
	if err != nil {
		return err
	}
	return a.print(map[string]any{"liveness_ok": res.LivenessOK, "liveness_score": res.LivenessScore})
}

func checkFrames(pathA, pathB string, threshold float64) (liveness.Result, error) {
	a, err := filex.ReadLimited(pathA, MaxCaptureBytes)
	if err != nil {
		return liveness.Result{}, err
	}
	b, err := filex.ReadLimited(pathB, MaxCaptureBytes)
	if err != nil {
		return liveness.Result{}, err
	}
	return liveness.NewChecker(threshold).FrameDifference(a, b)
}

// SessionStart opens an exam session. With -frame-a and -frame-b the
// liveness fields are computed locally from the two frames.
func (a *App) SessionStart(ctx context.Context, api API, args []string) error {
	fs := a.flagSet("session-start")
	userID := fs.Int64("user", 0, "user id")
	live := fs.Bool("liveness-ok", false, "liveness check passed")
	score := fs.Float64("liveness-score", 0, "liveness motion score")
	frameA := fs.String("frame-a", "", "first liveness frame")
	frameB := fs.String("frame-b", "", "second liveness frame")
	schedule := fs.String("schedule", "", "start_end or interval")
	duration := fs.Int("duration", 0, "exam duration (minutes)")
	interval := fs.Int("interval", 0, "check interval (minutes)")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "user"); err != nil {
		return err
	}

	in := client.StartSession{UserID: *userID, LivenessOK: *live, ScheduleType: *schedule}
	if set["liveness-score"] {
		in.LivenessScore = score
	}
	if set["frame-a"] || set["frame-b"] {
		if err := requireFlags(fs, set, "frame-a", "frame-b"); err != nil {
			return err
		}
		res, err := checkFrames(*frameA, *frameB, liveness.DefaultMotionThreshold)
		if err != nil {
			return err
		}
		in.LivenessOK = res.LivenessOK
		in.LivenessScore = &res.LivenessScore
	}
	if set["duration"] {
		in.DurationMinutes = duration
	}
	if set["interval"] {
		in.IntervalMinutes = interval
	}

	res, err := api.StartSession(ctx, in)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) SessionSubmit(ctx context.Context, api API, args []string) error {
	fs := a.flagSet("session-submit")
	sessionID := fs.Int64("session", 0, "exam session id")
	userID := fs.Int64("user", 0, "user id")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "session", "user"); err != nil {
		return err
	}

	res, err := api.SubmitSession(ctx, *sessionID, *userID)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) Metrics(ctx context.Context, api API, args []string) error {
	fs := a.flagSet("metrics")
	sessionID := fs.Int64("session", 0, "exam session id")

	set, err := parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireFlags(fs, set, "session"); err != nil {
		return err
	}

	res, err := api.SessionMetrics(ctx, *sessionID)
	if err != nil {
		return err
	}
	return a.print(res)
}
