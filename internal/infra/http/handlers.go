package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

type actionResponse struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleHealth(c *gin.Context) {
	mode := "memory"
	if s.store.Enabled() {
		mode = "db"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
}

var collectionActions = map[string]func(*Server, *gin.Context){
	http.MethodGet + " /v1/certificates:active":   (*Server).handleActiveCertificates,
	http.MethodPost + " /v1/revocations:check":    (*Server).handleCheckBatch,
	http.MethodGet + " /v1/revocations:hash":      (*Server).handleRevocationListHash,
	http.MethodPost + " /v1/credentials:verify":   (*Server).handleVerifyCredential,
	http.MethodPost + " /v1/presentations:verify": (*Server).handleVerifyPresentation,
	http.MethodGet + " /v1/events:verify":         (*Server).handleVerifyEvents,
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if handler, ok := collectionActions[c.Request.Method+" "+c.Request.URL.Path]; ok {
		handler(s, c)
		return
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

// splitAction parses "<id>:<action>". Ids may contain colons (DIDs, URNs),
// so the action is taken after the last one.
func splitAction(segment string) (string, string, bool) {
	idx := strings.LastIndex(segment, ":")
	if idx <= 0 || idx == len(segment)-1 {
		return "", "", false
	}
	return segment[:idx], segment[idx+1:], true
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return false
	}
	return true
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return false
	}
	return true
}

func (s *Server) handleListEvents(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.events == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "event log not configured")
		return
	}
	after, err := parseInt64Query(c, "after", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := parseInt64Query(c, "limit", 100)
	if err != nil {
		writeError(c, err)
		return
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events, err := s.events.List(c.Request.Context(), after, int(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleVerifyEvents(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.events == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "event log not configured")
		return
	}
	if err := usecase.VerifyEventChain(c.Request.Context(), s.events); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func parseInt64Query(c *gin.Context, name string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return v, nil
}
