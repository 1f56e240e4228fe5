package verification

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/auth"
)

// Handler handles HTTP requests for verification votes
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers verification routes on an authenticated group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/stores/:id/verify", h.submitVerification)
}

type verifyRequest struct {
	Decision Decision `json:"decision" binding:"required"`
	Evidence Evidence `json:"evidence"`
}

// submitVerification handles POST /stores/:id/verify
func (h *Handler) submitVerification(c *gin.Context) {
	voter, ok := auth.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	storeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.SubmitVerification(c.Request.Context(), storeID, voter, req.Decision, req.Evidence)
	switch {
	case errors.Is(err, ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be confirm or ignore"})
	case errors.Is(err, ErrStoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
	case errors.Is(err, ErrSelfVerification):
		c.JSON(http.StatusForbidden, gin.H{"error": "you cannot verify your own store"})
	case err != nil:
		h.logger.Error("failed to submit verification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit verification"})
	default:
		c.JSON(http.StatusOK, result)
	}
}
