package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/cryptox"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/server/auth"
	"github.com/dmitrijs2005/biokeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "http-test-secret"

type noModel struct{}

func (noModel) Name() string { return "no-model" }
func (noModel) Extract(context.Context, extractor.Media) (biometric.Vector, error) {
	return nil, errors.New("model not loaded")
}

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	key, err := cryptox.KeyFromConfig("k", "s")
	require.NoError(t, err)
	c, err := cryptox.NewCipher(key)
	require.NoError(t, err)

	ex := extractor.New(extractor.Config{}, nil)
	ex.Register(biometric.ModalityFace, noModel{})
	ex.Register(biometric.ModalityVoice, noModel{})
	require.NoError(t, ex.Open(context.Background()))

	rm := repomanager.NewInMemoryRepositoryManager()
	opts := Options{
		Services: services.Bundle{
			Enrollment:   services.NewEnrollmentService(nil, rm, ex, c, nil, nil),
			Verification: services.NewVerificationService(nil, rm, ex, c, nil, services.RateLimit{}, nil),
			Sessions:     services.NewSessionService(nil, rm, 0.02, nil),
			Ledger:       services.NewLedgerService(nil, rm),
		},
		Backends:  ex.Registry(),
		JWTSecret: testSecret,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewServer(opts, logging.Nop{})
}

type upload struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func file(name, content string) upload {
	return upload{field: "file", filename: name, data: []byte(content)}
}

func TestEnroll_EmptyFileUsesFallback(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
		map[string]string{"user_id": "42"}, file("john_a.jpg", "")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["mock_used"])

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/face",
		map[string]string{"user_id": "42"}, file("john_b.png", "")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["match"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, body["backends"], 2)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec, _ := do(t, s, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestEnrollAndVerify(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
		map[string]string{"user_id": "1"}, file("alice_1.jpg", "enroll")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["biometric_id"])
	assert.Equal(t, true, body["mock_used"])
	assert.Equal(t, extractor.FallbackBackendName, body["backend"])

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/face",
		map[string]string{"user_id": "1"}, file("alice_2.jpg", "second capture")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["match"])
	assert.Equal(t, "euclidean", body["metric"])

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/face",
		map[string]string{"user_id": "1"}, file("photo.jpg", "unrelated bytes")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["match"])
}

func TestErrors(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.MaxUploadBytes = 8 })

	cases := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantBody string
	}{
		{"fingerprint", multipartRequest(t, http.MethodPost, "/api/v1/enroll/fingerprint",
			map[string]string{"user_id": "1"}, file("a.bin", "x")), http.StatusBadRequest, codeValidation},
		{"unknown modality", multipartRequest(t, http.MethodPost, "/api/v1/enroll/iris",
			map[string]string{"user_id": "1"}, file("a.bin", "x")), http.StatusBadRequest, codeValidation},
		{"missing file", multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
			map[string]string{"user_id": "1"}), http.StatusBadRequest, codeValidation},
		{"bad user id", multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
			map[string]string{"user_id": "abc"}, file("a.jpg", "x")), http.StatusBadRequest, codeValidation},
		{"too large", multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
			map[string]string{"user_id": "1"}, file("a.jpg", "0123456789")), http.StatusBadRequest, codeValidation},
		{"no template", multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/voice",
			map[string]string{"user_id": "77"}, file("a.wav", "x")), http.StatusNotFound, codeNotFound},
		{"bad phase", multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/face/middle",
			map[string]string{"user_id": "1", "session_id": "1"}, file("a.jpg", "x")), http.StatusBadRequest, codeValidation},
		{"bad metrics id", httptest.NewRequest(http.MethodGet, "/api/v1/exam/metrics/session/x", nil), http.StatusBadRequest, codeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, s, tc.req)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tc.wantBody, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/enroll/face",
		map[string]string{"user_id": "2"}, file("bob_1.jpg", "enroll")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/exam/session/start",
		map[string]string{"user_id": "2", "liveness_ok": "false", "liveness_score": "0.9"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, body["code"])

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/exam/session/start",
		map[string]string{"user_id": "2", "liveness_ok": "true", "liveness_score": "0.3", "duration_minutes": "90"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "active", body["status"])
	sid := body["session_id"].(float64)

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/exam/metrics/session/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["events"])
	assert.Nil(t, body["frr"])
	assert.Nil(t, body["far"])

	for _, f := range []upload{file("bob_2.jpg", "a"), file("bob_3.jpg", "b"), file("zoe_1.jpg", "c")} {
		rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/verify/authenticate/face/random",
			map[string]string{"user_id": "2", "session_id": "1"}, f))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, sid, body["session_id"])
		assert.Equal(t, "random", body["phase"])
	}

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/exam/metrics/session/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["events"])
	assert.InDelta(t, 1.0/3.0, body["frr"], 1e-12)
	assert.Nil(t, body["far"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/exam/session/1/details", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	log, ok := body["log"].([]any)
	require.True(t, ok)
	require.Len(t, log, 3)
	assert.Equal(t, "face", log[0].(map[string]any)["modality"])

	for i := 0; i < 2; i++ {
		rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/exam/session/submit",
			map[string]string{"user_id": "2", "session_id": "1"}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "completed", body["status"])
	}

	rec, _ = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/exam/session/submit",
		map[string]string{"user_id": "3", "session_id": "1"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.AuthEnabled = true })

	token := func(userID int64) string {
		tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Minute)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	req := multipartRequest(t, http.MethodPost, "/api/v1/enroll/face", map[string]string{"user_id": "4"}, file("d_1.jpg", "x"))
	rec, body := do(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, body["code"])

	req = multipartRequest(t, http.MethodPost, "/api/v1/enroll/face", map[string]string{"user_id": "4"}, file("d_1.jpg", "x"))
	req.Header.Set("Authorization", token(5))
	rec, _ = do(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = multipartRequest(t, http.MethodPost, "/api/v1/enroll/face", map[string]string{"user_id": "4"}, file("d_1.jpg", "x"))
	req.Header.Set("Authorization", token(4))
	rec, _ = do(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func pngFrame(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: shade})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLivenessCheck(t *testing.T) {
	s := newTestServer(t, nil)

	still := pngFrame(t, 100)
	rec, body := do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/liveness/check", nil,
		upload{"frame_a", "a.png", still}, upload{"frame_b", "b.png", still}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["liveness_ok"])
	assert.InDelta(t, 0, body["liveness_score"], 1e-9)

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/liveness/check", nil,
		upload{"frame_a", "a.png", still}, upload{"frame_b", "b.png", pngFrame(t, 200)}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["liveness_ok"])

	rec, body = do(t, s, multipartRequest(t, http.MethodPost, "/api/v1/liveness/check", nil,
		upload{"frame_a", "a.png", still}, upload{"frame_b", "b.png", []byte("not an image")}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "frame_b")
}

func TestRecovery(t *testing.T) {
	s := newTestServer(t, nil)
	s.engine.GET("/panic", func(*gin.Context) { panic("boom") })

	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, body["code"])
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestServer(t, func(o *Options) { o.Address = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
