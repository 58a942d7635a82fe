package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/extractor"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type enrollResponse struct {
	BiometricID int64  `json:"biometric_id"`
	MockUsed    bool   `json:"mock_used"`
	Backend     string `json:"backend"`
}

type verifyResponse struct {
	Match     bool    `json:"match"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Metric    string  `json:"metric"`
	MockUsed  bool    `json:"mock_used"`
	Backend   string  `json:"backend"`
}

type verifyAndLogResponse struct {
	SessionID int64  `json:"session_id"`
	Phase     string `json:"phase"`
	EventID   int64  `json:"event_id"`
	verifyResponse
}

type sessionResponse struct {
	SessionID int64  `json:"session_id"`
	Status    string `json:"status"`
}

type metricsResponse struct {
	SessionID int64    `json:"session_id"`
	Events    int      `json:"events"`
	FRR       *float64 `json:"frr"`
	FAR       *float64 `json:"far"`
}

type eventResponse struct {
	ID        int64     `json:"id"`
	Modality  string    `json:"modality"`
	Phase     string    `json:"phase"`
	Match     bool      `json:"match"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Metric    string    `json:"metric"`
	MockUsed  bool      `json:"mock_used"`
	Trial     string    `json:"trial"`
	CreatedAt time.Time `json:"created_at"`
}

type detailsResponse struct {
	SessionID int64           `json:"session_id"`
	Log       []eventResponse `json:"log"`
}

type livenessResponse struct {
	LivenessOK    bool    `json:"liveness_ok"`
	LivenessScore float64 `json:"liveness_score"`
}

type backendStatus struct {
	Name      string `json:"name"`
	Modality  string `json:"modality"`
	Position  int    `json:"position"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.opts.Backends != nil {
		snap := s.opts.Backends.Snapshot()
		out := make([]backendStatus, 0, len(snap))
		for _, st := range snap {
			out = append(out, backendStatus{
				Name: st.Name, Modality: string(st.Modality), Position: st.Position, Available: st.Available, Reason: st.Reason,
			})
		}
		resp["backends"] = out
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) enroll(c *gin.Context) {
	req, err := s.captureRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	deviceInfo := strings.TrimSpace(c.PostForm("device_info"))
	if deviceInfo == "" {
		deviceInfo = common.DeviceInfoWebUpload
	}

	res, err := s.svc.Enrollment.Enroll(c.Request.Context(), services.EnrollRequest{
		UserID:     req.UserID,
		Modality:   req.Modality,
		Media:      req.Media,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, enrollResponse{BiometricID: res.TemplateID, MockUsed: res.MockUsed, Backend: res.Backend})
}

func (s *Server) verify(c *gin.Context) {
	req, err := s.captureRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.svc.Verification.Verify(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVerifyResponse(res))
}

func (s *Server) verifyAndLog(c *gin.Context) {
	req, err := s.captureRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	phase, err := biometric.ParsePhase(c.Param("phase"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	trial, err := biometric.ParseTrial(c.PostForm("trial"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	sessionID, err := formInt(c, "session_id")
	if err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.svc.Verification.VerifyAndLog(c.Request.Context(), services.VerifyAndLogRequest{
		VerifyRequest: req,
		SessionID:     sessionID,
		Phase:         phase,
		Trial:         trial,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyAndLogResponse{
		SessionID:      res.SessionID,
		Phase:          string(res.Phase),
		EventID:        res.EventID,
		verifyResponse: toVerifyResponse(&res.VerifyResult),
	})
}

func (s *Server) startSession(c *gin.Context) {
	userID, err := s.formUserID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	req := services.StartRequest{UserID: userID, ScheduleType: c.PostForm("schedule_type")}
	if req.LivenessOK, err = formBool(c, "liveness_ok"); err != nil {
		s.respondError(c, err)
		return
	}
	if req.LivenessScore, err = formOptFloat(c, "liveness_score"); err != nil {
		s.respondError(c, err)
		return
	}
	if req.DurationMinutes, err = formOptInt(c, "duration_minutes"); err != nil {
		s.respondError(c, err)
		return
	}
	if req.IntervalMinutes, err = formOptInt(c, "interval_minutes"); err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.svc.Sessions.Start(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: res.SessionID, Status: string(res.Status)})
}

func (s *Server) submitSession(c *gin.Context) {
	sessionID, err := formInt(c, "session_id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	userID, err := s.formUserID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.svc.Sessions.Submit(c.Request.Context(), sessionID, userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: res.SessionID, Status: string(res.Status)})
}

func (s *Server) sessionMetrics(c *gin.Context) {
	sessionID, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	m, err := s.svc.Ledger.Metrics(c.Request.Context(), sessionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metricsResponse{SessionID: m.SessionID, Events: m.Events, FRR: m.FRR, FAR: m.FAR})
}

func (s *Server) sessionDetails(c *gin.Context) {
	sessionID, err := pathID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	evs, err := s.svc.Ledger.Events(c.Request.Context(), sessionID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := detailsResponse{SessionID: sessionID, Log: make([]eventResponse, 0, len(evs))}
	for _, e := range evs {
		out.Log = append(out.Log, eventResponse{
			ID:        e.ID,
			Modality:  string(e.Modality),
			Phase:     string(e.Phase),
			Match:     e.Match,
			Score:     e.Score,
			Threshold: e.Threshold,
			Metric:    e.Metric,
			MockUsed:  e.MockUsed,
			Trial:     string(e.Trial),
			CreatedAt: e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) livenessCheck(c *gin.Context) {
	a, err := s.readFile(c, "frame_a")
	if err != nil {
		s.respondError(c, err)
		return
	}
	b, err := s.readFile(c, "frame_b")
	if err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.opts.Liveness.FrameDifference(a.Data, b.Data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, livenessResponse{LivenessOK: res.LivenessOK, LivenessScore: res.LivenessScore})
}

// captureRequest reads the modality path parameter and the user_id and
// file form fields.
func (s *Server) captureRequest(c *gin.Context) (services.VerifyRequest, error) {
	m, err := biometric.ParseModality(c.Param("modality"))
	if err != nil {
		return services.VerifyRequest{}, err
	}
	userID, err := s.formUserID(c)
	if err != nil {
		return services.VerifyRequest{}, err
	}
	media, err := s.readFile(c, "file")
	if err != nil {
		return services.VerifyRequest{}, err
	}
	return services.VerifyRequest{UserID: userID, Modality: m, Media: media}, nil
}

func (s *Server) readFile(c *gin.Context, field string) (extractor.Media, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return extractor.Media{}, fmt.Errorf("%w: %s upload is required", common.ErrValidation, field)
	}
	if fh.Size > s.opts.MaxUploadBytes {
		return extractor.Media{}, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrValidation, field, s.opts.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return extractor.Media{}, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		return extractor.Media{}, fmt.Errorf("read %s: %w", field, err)
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return extractor.Media{}, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrValidation, field, s.opts.MaxUploadBytes)
	}
	return extractor.Media{Data: data, Filename: fh.Filename}, nil
}

// formUserID parses user_id and, with auth enabled, requires it to equal
// the token subject.
func (s *Server) formUserID(c *gin.Context) (int64, error) {
	userID, err := formInt(c, "user_id")
	if err != nil {
		return 0, err
	}
	if v, ok := c.Get(ctxUserID); ok {
		if caller, _ := v.(int64); caller != userID {
			return 0, common.ErrUnauthorized
		}
	}
	return userID, nil
}

func formInt(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", common.ErrValidation, key)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
	}
	return n, nil
}

func formOptInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, key)
	}
	return &n, nil
}

func formOptFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", common.ErrValidation, key)
	}
	return &f, nil
}

func formBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", common.ErrValidation, key)
	}
	return b, nil
}

func pathID(c *gin.Context) (int64, error) {
	n, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: session id must be an integer", common.ErrValidation)
	}
	return n, nil
}

func toVerifyResponse(r *services.VerifyResult) verifyResponse {
	return verifyResponse{
		Match:     r.Match,
		Score:     r.Score,
		Threshold: r.Threshold,
		Metric:    string(r.Metric),
		MockUsed:  r.MockUsed,
		Backend:   r.Backend,
	}
}
