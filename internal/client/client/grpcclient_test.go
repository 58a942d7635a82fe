package client

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	gs "github.com/dmitrijs2005/biokeeper/internal/server/grpc"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeCaller struct {
	lastMethod string
	lastFields map[string]any

	out map[string]any
	err error
}

func (f *fakeCaller) Call(_ context.Context, method string, fields map[string]any, _ ...grpc.CallOption) (map[string]any, error) {
	f.lastMethod = method
	f.lastFields = fields
	return f.out, f.err
}

func newWithFake(f *fakeCaller) *GRPCClient {
	return &GRPCClient{client: f}
}

func TestEnroll_SendsBase64Media(t *testing.T) {
	f := &fakeCaller{out: map[string]any{"biometric_id": float64(3)}}
	c := newWithFake(f)

	out, err := c.Enroll(context.Background(), Capture{UserID: 7, Modality: "face", Data: []byte("img"), Filename: "a_1.jpg", DeviceInfo: "cli"})
	require.NoError(t, err)
	require.Equal(t, float64(3), out["biometric_id"])

	require.Equal(t, gs.MethodEnroll, f.lastMethod)
	require.Equal(t, int64(7), f.lastFields["user_id"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), f.lastFields["media"])
	require.Equal(t, "a_1.jpg", f.lastFields["filename"])
	require.Equal(t, "cli", f.lastFields["device_info"])
}

func TestVerifyAndLog_SessionFields(t *testing.T) {
	f := &fakeCaller{out: map[string]any{}}
	c := newWithFake(f)

	_, err := c.VerifyAndLog(context.Background(), Capture{UserID: 1, Modality: "voice", Data: []byte("w")},
		SessionCheck{SessionID: 9, Phase: "end"})
	require.NoError(t, err)
	require.Equal(t, gs.MethodVerifyAndLog, f.lastMethod)
	require.Equal(t, int64(9), f.lastFields["session_id"])
	require.Equal(t, "end", f.lastFields["phase"])
	_, hasTrial := f.lastFields["trial"]
	require.False(t, hasTrial)
}

func TestStartSession_OptionalFields(t *testing.T) {
	f := &fakeCaller{out: map[string]any{}}
	c := newWithFake(f)

	score, duration := 0.4, 60
	_, err := c.StartSession(context.Background(), StartSession{UserID: 2, LivenessOK: true, LivenessScore: &score, DurationMinutes: &duration})
	require.NoError(t, err)
	require.Equal(t, 0.4, f.lastFields["liveness_score"])
	require.Equal(t, 60, f.lastFields["duration_minutes"])
	_, hasInterval := f.lastFields["interval_minutes"]
	require.False(t, hasInterval)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{status.Error(codes.Unavailable, "down"), ErrUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), ErrUnavailable},
		{status.Error(codes.Unauthenticated, "missing token"), ErrUnauthorized},
	}
	for _, tc := range cases {
		if err := mapError(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("mapError(%v) = %v, want %v", tc.in, err, tc.want)
		}
	}

	err := mapError(status.Error(codes.NotFound, "no face template for user 1"))
	require.EqualError(t, err, "NotFound: no face template for user 1")

	plain := errors.New("plain")
	require.Equal(t, plain, mapError(plain))
}

func TestPing_MapsErrors(t *testing.T) {
	c := newWithFake(&fakeCaller{err: status.Error(codes.Unavailable, "connection refused")})
	err := c.Ping(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestAccessTokenInterceptor(t *testing.T) {
	c := &GRPCClient{accessToken: "tok"}

	var seen string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
			seen = v[0]
		}
		return nil
	}

	require.NoError(t, c.accessTokenInterceptor(context.Background(), "/m", nil, nil, nil, invoker))
	require.Equal(t, "tok", seen)

	seen = ""
	c.accessToken = ""
	require.NoError(t, c.accessTokenInterceptor(context.Background(), "/m", nil, nil, nil, invoker))
	require.Empty(t, seen)
}
