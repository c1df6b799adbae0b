package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"oliv/internal/logger"
	"oliv/internal/model"
	"oliv/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Where a client may carry its session id between requests
const (
	SessionHeader = "X-Session-Id"
	SessionCookie = "oliv_session"
)

// ChatService is the conversation turn handler the HTTP layer calls
type ChatService interface {
	Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	chat         ChatService
	cookieMaxAge int
	cookieSecure bool
	logger       *zap.Logger
}

// NewChatHandler creates a new chat handler. The session cookie lives as long as the session TTL.
func NewChatHandler(chat ChatService, sessionTTL time.Duration, cookieSecure bool, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:         chat,
		cookieMaxAge: int(sessionTTL.Seconds()),
		cookieSecure: cookieSecure,
		logger:       logger.OrNop(log).Named("http.chat"),
	}
}

// Chat handles POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = sessionIDFromRequest(c)
	}

	resp, err := h.chat.Chat(c.Request.Context(), &req)
	if errors.Is(err, service.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("chat turn failed", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed"})
		return
	}

	h.setSession(c, resp.SessionID)
	c.JSON(http.StatusOK, resp)
}

// Reset handles DELETE /chat/session
func (h *ChatHandler) Reset(c *gin.Context) {
	sessionID := sessionIDFromRequest(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No session to reset"})
		return
	}

	if err := h.chat.Reset(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("session reset failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset session"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": sessionID})
}

func (h *ChatHandler) setSession(c *gin.Context, sessionID string) {
	c.Header(SessionHeader, sessionID)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sessionID, h.cookieMaxAge, "/", "", h.cookieSecure, true)
}

// sessionIDFromRequest reads the session id from the header, then the cookie
func sessionIDFromRequest(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if id, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(id)
	}
	return ""
}
