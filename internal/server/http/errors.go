package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeRateLimited  = "rate_limited"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError writes the error body for err. Internal failures are logged
// and answered with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}

	switch {
	case errors.Is(err, common.ErrValidation):
		status, body = http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()}
	case errors.Is(err, common.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, common.ErrRateLimited):
		status, body = http.StatusTooManyRequests, errorBody{Code: codeRateLimited, Message: err.Error()}
	case errors.Is(err, common.ErrUnauthorized):
		status, body = http.StatusUnauthorized, errorBody{Code: codeUnauthorized, Message: "unauthorized"}
	case errors.Is(err, common.ErrDecryption):
		body.Message = "failed to decrypt biometric data"
		s.logger.Error(c.Request.Context(), "stored template could not be decrypted", "path", c.FullPath(), "error", err)
	case errors.Is(err, context.Canceled):
		s.logger.Info(c.Request.Context(), "request canceled", "path", c.FullPath())
	default:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(status, body)
}
