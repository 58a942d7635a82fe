package grpc

import (
	"context"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return response(map[string]any{"status": "OK"})
}

func (s *GRPCServer) Enroll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in, err := captureRequest(ctx, f)
	if err != nil {
		return nil, s.toStatus(ctx, MethodEnroll, err)
	}

	res, err := s.svc.Enrollment.Enroll(ctx, services.EnrollRequest{
		UserID:     in.UserID,
		Modality:   in.Modality,
		Media:      in.Media,
		DeviceInfo: f.str("device_info"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, MethodEnroll, err)
	}

	return response(map[string]any{
		"biometric_id": res.TemplateID,
		"mock_used":    res.MockUsed,
		"backend":      res.Backend,
	})
}

func (s *GRPCServer) Verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := captureRequest(ctx, newFields(req))
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerify, err)
	}

	res, err := s.svc.Verification.Verify(ctx, in)
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerify, err)
	}
	return response(verifyFields(res))
}

func (s *GRPCServer) VerifyAndLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in, err := captureRequest(ctx, f)
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerifyAndLog, err)
	}
	sessionID, err := f.requiredInt("session_id")
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerifyAndLog, err)
	}
	phase, err := biometric.ParsePhase(f.str("phase"))
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerifyAndLog, err)
	}
	trial, err := biometric.ParseTrial(f.str("trial"))
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerifyAndLog, err)
	}

	res, err := s.svc.Verification.VerifyAndLog(ctx, services.VerifyAndLogRequest{
		VerifyRequest: in,
		SessionID:     sessionID,
		Phase:         phase,
		Trial:         trial,
	})
	if err != nil {
		return nil, s.toStatus(ctx, MethodVerifyAndLog, err)
	}

	out := verifyFields(&res.VerifyResult)
	out["session_id"] = res.SessionID
	out["phase"] = string(res.Phase)
	out["event_id"] = res.EventID
	return response(out)
}

func (s *GRPCServer) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	userID, err := f.requiredInt("user_id")
	if err == nil {
		err = authorize(ctx, userID)
	}
	if err != nil {
		return nil, s.toStatus(ctx, MethodStartSession, err)
	}

	sr := services.StartRequest{
		UserID:       userID,
		LivenessOK:   f.flag("liveness_ok"),
		ScheduleType: f.str("schedule_type"),
	}
	if sr.LivenessScore, err = f.optFloat("liveness_score"); err != nil {
		return nil, s.toStatus(ctx, MethodStartSession, err)
	}
	if sr.DurationMinutes, err = f.optInt("duration_minutes"); err != nil {
		return nil, s.toStatus(ctx, MethodStartSession, err)
	}
	if sr.IntervalMinutes, err = f.optInt("interval_minutes"); err != nil {
		return nil, s.toStatus(ctx, MethodStartSession, err)
	}

	res, err := s.svc.Sessions.Start(ctx, sr)
	if err != nil {
		return nil, s.toStatus(ctx, MethodStartSession, err)
	}
	return response(map[string]any{"session_id": res.SessionID, "status": string(res.Status)})
}

func (s *GRPCServer) SubmitSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	sessionID, err := f.requiredInt("session_id")
	if err != nil {
		return nil, s.toStatus(ctx, MethodSubmitSession, err)
	}
	userID, err := f.requiredInt("user_id")
	if err == nil {
		err = authorize(ctx, userID)
	}
	if err != nil {
		return nil, s.toStatus(ctx, MethodSubmitSession, err)
	}

	res, err := s.svc.Sessions.Submit(ctx, sessionID, userID)
	if err != nil {
		return nil, s.toStatus(ctx, MethodSubmitSession, err)
	}
	return response(map[string]any{"session_id": res.SessionID, "status": string(res.Status)})
}

func (s *GRPCServer) SessionMetrics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID, err := newFields(req).requiredInt("session_id")
	if err != nil {
		return nil, s.toStatus(ctx, MethodSessionMetrics, err)
	}

	m, err := s.svc.Ledger.Metrics(ctx, sessionID)
	if err != nil {
		return nil, s.toStatus(ctx, MethodSessionMetrics, err)
	}
	return response(map[string]any{
		"session_id": m.SessionID,
		"events":     m.Events,
		"frr":        optFloat(m.FRR),
		"far":        optFloat(m.FAR),
	})
}

// captureRequest reads user_id, modality and media shared by enroll and
// verify calls.
func captureRequest(ctx context.Context, f fields) (services.VerifyRequest, error) {
	userID, err := f.requiredInt("user_id")
	if err != nil {
		return services.VerifyRequest{}, err
	}
	if err := authorize(ctx, userID); err != nil {
		return services.VerifyRequest{}, err
	}
	m, err := biometric.ParseModality(f.str("modality"))
	if err != nil {
		return services.VerifyRequest{}, err
	}
	media, err := f.media()
	if err != nil {
		return services.VerifyRequest{}, err
	}
	return services.VerifyRequest{UserID: userID, Modality: m, Media: media}, nil
}

func verifyFields(r *services.VerifyResult) map[string]any {
	return map[string]any{
		"match":     r.Match,
		"score":     r.Score,
		"threshold": r.Threshold,
		"metric":    string(r.Metric),
		"mock_used": r.MockUsed,
		"backend":   r.Backend,
	}
}
