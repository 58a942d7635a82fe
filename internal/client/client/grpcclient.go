// Package client is the gRPC client of BiometricService used by
// biokeeperctl.
package client

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	gs "github.com/dmitrijs2005/biokeeper/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// caller is the subset of gs.Client used here.
type caller interface {
	Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (map[string]any, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      caller
	accessToken string
}

// Capture is one upload sent for enrollment or verification.
type Capture struct {
	UserID     int64
	Modality   string
	Data       []byte
	Filename   string
	DeviceInfo string
}

// SessionCheck carries the session fields of a logged verification.
type SessionCheck struct {
	SessionID int64
	Phase     string
	Trial     string
}

type StartSession struct {
	UserID          int64
	LivenessOK      bool
	LivenessScore   *float64
	ScheduleType    string
	DurationMinutes *int
	IntervalMinutes *int
}

func NewGRPCClient(endpointURL, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	conn, err := grpc.NewClient(endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpointURL, err)
	}
	c.conn = conn
	c.client = gs.NewClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) call(ctx context.Context, method string, fields map[string]any) (map[string]any, error) {
	out, err := c.client.Call(ctx, method, fields)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// mapError turns transport failures into client sentinels and keeps the
// server message for everything else.
func mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	default:
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	_, err := c.call(ctx, gs.MethodPing, nil)
	return err
}

func (c *GRPCClient) Enroll(ctx context.Context, in Capture) (map[string]any, error) {
	fields := captureFields(in)
	if in.DeviceInfo != "" {
		fields["device_info"] = in.DeviceInfo
	}
	return c.call(ctx, gs.MethodEnroll, fields)
}

func (c *GRPCClient) Verify(ctx context.Context, in Capture) (map[string]any, error) {
	return c.call(ctx, gs.MethodVerify, captureFields(in))
}

func (c *GRPCClient) VerifyAndLog(ctx context.Context, in Capture, sc SessionCheck) (map[string]any, error) {
	fields := captureFields(in)
	fields["session_id"] = sc.SessionID
	fields["phase"] = sc.Phase
	if sc.Trial != "" {
		fields["trial"] = sc.Trial
	}
	return c.call(ctx, gs.MethodVerifyAndLog, fields)
}

func (c *GRPCClient) StartSession(ctx context.Context, in StartSession) (map[string]any, error) {
	fields := map[string]any{
		"user_id":     in.UserID,
		"liveness_ok": in.LivenessOK,
	}
	if in.LivenessScore != nil {
		fields["liveness_score"] = *in.LivenessScore
	}
	if in.ScheduleType != "" {
		fields["schedule_type"] = in.ScheduleType
	}
	if in.DurationMinutes != nil {
		fields["duration_minutes"] = *in.DurationMinutes
	}
	if in.IntervalMinutes != nil {
		fields["interval_minutes"] = *in.IntervalMinutes
	}
	return c.call(ctx, gs.MethodStartSession, fields)
}

func (c *GRPCClient) SubmitSession(ctx context.Context, sessionID, userID int64) (map[string]any, error) {
	return c.call(ctx, gs.MethodSubmitSession, map[string]any{"session_id": sessionID, "user_id": userID})
}

func (c *GRPCClient) SessionMetrics(ctx context.Context, sessionID int64) (map[string]any, error) {
	return c.call(ctx, gs.MethodSessionMetrics, map[string]any{"session_id": sessionID})
}

func captureFields(in Capture) map[string]any {
	return map[string]any{
		"user_id":  in.UserID,
		"modality": in.Modality,
		"media":    base64.StdEncoding.EncodeToString(in.Data),
		"filename": in.Filename,
	}
}
