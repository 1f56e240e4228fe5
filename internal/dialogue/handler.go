package dialogue

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/auth"
)

type Handler struct {
	engine *Engine
	logger *zap.Logger
}

func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/dialogue/:sessionId/message", h.message)
}

type messageRequest struct {
	Utterance string `json:"utterance" binding:"required"`
}

func (h *Handler) message(c *gin.Context) {
	sessionID := c.Param("sessionId")

	principal, ok := auth.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "utterance is required"})
		return
	}

	resp, err := h.engine.IngestUtterance(c.Request.Context(), sessionID, principal, req.Utterance)
	if err != nil {
		h.logger.Error("dialogue turn failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
