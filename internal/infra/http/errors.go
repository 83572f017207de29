package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrInvalidValidity):
		status, code = http.StatusBadRequest, "INVALID_VALIDITY"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrIssuerNotFound):
		status, code = http.StatusNotFound, "ISSUER_NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadyExists):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, domain.ErrAlreadyRevoked):
		status, code = http.StatusConflict, "ALREADY_REVOKED"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrIssuerRevoked):
		status, code = http.StatusConflict, "ISSUER_REVOKED"
	case errors.Is(err, domain.ErrRootTrustLevel):
		status, code = http.StatusUnprocessableEntity, "ROOT_TRUST_LEVEL"
	case errors.Is(err, domain.ErrTrustLevelExceedsParent):
		status, code = http.StatusUnprocessableEntity, "TRUST_LEVEL_EXCEEDS_PARENT"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
		_ = c.Error(err)
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
