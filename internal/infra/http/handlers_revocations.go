package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type revokeRequest struct {
	CredentialID string                  `json:"credential_id"`
	IssuerID     string                  `json:"issuer_id,omitempty"`
	Reason       domain.RevocationReason `json:"reason,omitempty"`
	Notes        string                  `json:"notes,omitempty"`
}

type checkBatchRequest struct {
	CredentialIDs []string `json:"credential_ids"`
}

func (s *Server) handleRevoke(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req revokeRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := s.registry.Revoke(c.Request.Context(), usecase.RevocationRequest{
		CredentialID: req.CredentialID,
		IssuerID:     req.IssuerID,
		Reason:       req.Reason,
		RevokedBy:    actorFromRequest(c),
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleListRevocations(c *gin.Context) {
	filter := domain.RevocationFilter{
		IssuerID: strings.TrimSpace(c.Query("issuer_id")),
		Reason:   domain.RevocationReason(strings.TrimSpace(c.Query("reason"))),
	}
	if filter.Reason != "" && !filter.Reason.Valid() {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown revocation reason")
		return
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "since must be RFC 3339")
			return
		}
		filter.Since = since
	}
	ctx := c.Request.Context()
	entries, err := s.registry.ListRevocations(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.RevocationEntry{}
	}
	epoch, err := s.registry.Epoch(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revocations": entries, "count": len(entries), "epoch": epoch})
}

func (s *Server) handleGetRevocation(c *gin.Context) {
	entry, ok, err := s.registry.GetRevocationEntry(c.Request.Context(), c.Param("credential_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleRevocationAction(c *gin.Context) {
	id, action, ok := splitAction(c.Param("id_action"))
	if !ok || action != "remove-hold" {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}
	if !s.requireAdmin(c) {
		return
	}
	removed, err := s.registry.RemoveHold(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, actionResponse{ID: id, Action: action, Changed: removed})
}

func (s *Server) handleCheckBatch(c *gin.Context) {
	if !s.enforceRateLimit(c, routeRevocationsCheck) {
		return
	}
	var req checkBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	results, err := s.registry.CheckBatch(c.Request.Context(), req.CredentialIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleRevocationListHash(c *gin.Context) {
	ctx := c.Request.Context()
	hash, err := s.registry.GenerateRevocationListHash(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := s.registry.GetRevocationCount(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": hash, "count": count})
}

func (s *Server) handleStatusList(c *gin.Context) {
	if !s.enforceRateLimit(c, routeStatusList) {
		return
	}
	doc, err := s.credentials.StatusListCredential(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
