package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type issueCertificateRequest struct {
	SubjectID           string            `json:"subject_id"`
	SubjectAttributes   domain.Attributes `json:"subject_attributes,omitempty"`
	PublicKey           []byte            `json:"public_key,omitempty"`
	ValidFrom           time.Time         `json:"valid_from"`
	ValidUntil          time.Time         `json:"valid_until"`
	ParentCertificateID string            `json:"parent_certificate_id,omitempty"`
	Extensions          domain.Attributes `json:"extensions,omitempty"`
}

type certificateActionRequest struct {
	Reason domain.RevocationReason `json:"reason,omitempty"`
}

func (s *Server) handleIssueCertificate(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req issueCertificateRequest
	if !bindJSON(c, &req) {
		return
	}
	cert, err := s.ca.IssueCertificate(c.Request.Context(), usecase.IssueCertificateRequest{
		SubjectID:           req.SubjectID,
		SubjectAttributes:   req.SubjectAttributes,
		PublicKey:           req.PublicKey,
		ValidFrom:           req.ValidFrom,
		ValidUntil:          req.ValidUntil,
		ParentCertificateID: req.ParentCertificateID,
		Extensions:          req.Extensions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	cert, ok, err := s.ca.GetCertificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (s *Server) handleCertificateBySubject(c *gin.Context) {
	subject := strings.TrimSpace(c.Query("subject_id"))
	if subject == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "subject_id is required")
		return
	}
	cert, ok, err := s.ca.GetCertificateBySubject(c.Request.Context(), subject)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (s *Server) handleActiveCertificates(c *gin.Context) {
	certs, err := s.ca.GetActiveCertificates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if certs == nil {
		certs = []domain.Certificate{}
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs})
}

func (s *Server) handleCertificateStatus(c *gin.Context) {
	id := c.Param("id")
	status, ok, err := s.ca.GetCertificateStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func (s *Server) handleVerifyCertificate(c *gin.Context) {
	if !s.enforceRateLimit(c, routeCertificatesVerify) {
		return
	}
	id := c.Param("id")
	valid, err := s.ca.VerifyCertificate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "valid": valid})
}

func (s *Server) handleCertificateAction(c *gin.Context) {
	id, action, ok := splitAction(c.Param("id_action"))
	if !ok {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if !s.requireAdmin(c) {
		return
	}
	var req certificateActionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	var (
		changed bool
		err     error
	)
	switch action {
	case "revoke":
		changed, err = s.ca.RevokeCertificate(ctx, id, req.Reason)
	case "suspend":
		changed, err = s.ca.SuspendCertificate(ctx, id, req.Reason)
	case "reinstate":
		changed, err = s.ca.ReinstateCertificate(ctx, id)
	default:
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if !changed {
		if _, exists, err := s.ca.GetCertificate(ctx, id); err == nil && !exists {
			writeError(c, domain.ErrNotFound)
			return
		}
	}
	c.JSON(http.StatusOK, actionResponse{ID: id, Action: action, Changed: changed})
}
