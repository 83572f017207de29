package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type registerIssuerRequest struct {
	ID         string            `json:"id"`
	Type       domain.IssuerType `json:"type"`
	TrustLevel domain.TrustLevel `json:"trust_level"`
	ParentID   string            `json:"parent_id,omitempty"`
	Metadata   domain.Attributes `json:"metadata,omitempty"`
}

type issuerActionRequest struct {
	Reason     string             `json:"reason,omitempty"`
	TrustLevel *domain.TrustLevel `json:"trust_level,omitempty"`
}

func (s *Server) handleRegisterIssuer(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req registerIssuerRequest
	if !bindJSON(c, &req) {
		return
	}
	in := usecase.RegisterIssuerRequest{
		ID:         req.ID,
		Type:       req.Type,
		TrustLevel: req.TrustLevel,
		Metadata:   req.Metadata,
	}
	var (
		rec domain.IssuerRecord
		err error
	)
	if parent := strings.TrimSpace(req.ParentID); parent != "" {
		rec, err = s.trust.RegisterDelegatedIssuer(c.Request.Context(), parent, in)
	} else {
		rec, err = s.trust.RegisterIssuer(c.Request.Context(), in)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleListIssuers(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		issuers []domain.IssuerRecord
		err     error
	)
	switch {
	case c.Query("roots") == "true":
		issuers, err = s.trust.GetRootIssuers(ctx)
	case c.Query("min_trust_level") != "":
		level, parseErr := domain.ParseTrustLevel(c.Query("min_trust_level"))
		if parseErr != nil {
			writeError(c, parseErr)
			return
		}
		issuers, err = s.trust.GetIssuersByTrustLevel(ctx, level)
	default:
		issuers, err = s.trust.GetAllIssuers(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if issuers == nil {
		issuers = []domain.IssuerRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"issuers": issuers})
}

func (s *Server) handleGetIssuer(c *gin.Context) {
	rec, ok, err := s.trust.GetIssuer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, domain.ErrIssuerNotFound)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleChildIssuers(c *gin.Context) {
	children, err := s.trust.GetChildIssuers(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if children == nil {
		children = []domain.IssuerRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"issuers": children})
}

func (s *Server) handleIssuerChain(c *gin.Context) {
	chain, err := s.trust.BuildTrustChain(c.Request.Context(), c.Query("credential_id"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if chain.Issuers == nil {
		chain.Issuers = []domain.IssuerRecord{}
	}
	c.JSON(http.StatusOK, chain)
}

func (s *Server) handleIssuerAction(c *gin.Context) {
	id, action, ok := splitAction(c.Param("id_action"))
	if !ok {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if !s.requireAdmin(c) {
		return
	}
	var req issuerActionRequest
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
		changed, err = s.trust.RevokeIssuer(ctx, id, req.Reason)
	case "trust-level":
		if req.TrustLevel == nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "trust_level is required")
			return
		}
		changed, err = s.trust.UpdateTrustLevel(ctx, id, *req.TrustLevel)
	default:
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, actionResponse{ID: id, Action: action, Changed: changed})
}
