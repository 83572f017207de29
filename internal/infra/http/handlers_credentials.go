package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type issueCredentialRequest struct {
	SubjectID      string            `json:"subject_id"`
	Claims         domain.Attributes `json:"claims"`
	Types          []string          `json:"types,omitempty"`
	ExpirationDate *time.Time        `json:"expiration_date,omitempty"`
}

type revokeCredentialRequest struct {
	Reason domain.RevocationReason `json:"reason,omitempty"`
}

type createPresentationRequest struct {
	Holder      string              `json:"holder"`
	Credentials []domain.Credential `json:"credentials"`
	Challenge   string              `json:"challenge"`
	Domain      string              `json:"domain,omitempty"`
}

type verifyPresentationRequest struct {
	Presentation domain.Presentation `json:"presentation"`
	Challenge    string              `json:"challenge"`
}

func (s *Server) handleIssueCredential(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req issueCredentialRequest
	if !bindJSON(c, &req) {
		return
	}
	cred, err := s.credentials.IssueCredential(c.Request.Context(), usecase.IssueCredentialRequest{
		SubjectID:      req.SubjectID,
		Claims:         req.Claims,
		Types:          req.Types,
		ExpirationDate: req.ExpirationDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (s *Server) handleVerifyCredential(c *gin.Context) {
	if !s.enforceRateLimit(c, routeCredentialsVerify) {
		return
	}
	var cred domain.Credential
	if !bindJSON(c, &cred) {
		return
	}
	c.JSON(http.StatusOK, s.credentials.VerifyCredential(c.Request.Context(), cred))
}

func (s *Server) handleCredentialAction(c *gin.Context) {
	id, action, ok := splitAction(c.Param("id_action"))
	if !ok || action != "revoke" {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if !s.requireAdmin(c) {
		return
	}
	var req revokeCredentialRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	entry, err := s.credentials.RevokeCredential(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleCreatePresentation(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req createPresentationRequest
	if !bindJSON(c, &req) {
		return
	}
	pres, err := s.credentials.CreatePresentation(c.Request.Context(), usecase.CreatePresentationRequest{
		Holder:      req.Holder,
		Credentials: req.Credentials,
		Challenge:   req.Challenge,
		Domain:      req.Domain,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pres)
}

func (s *Server) handleVerifyPresentation(c *gin.Context) {
	if !s.enforceRateLimit(c, routePresentationsVerify) {
		return
	}
	var req verifyPresentationRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.credentials.VerifyPresentation(c.Request.Context(), req.Presentation, req.Challenge))
}
