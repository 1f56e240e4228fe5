package stores

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/auth"
	"amala-joint/store-portal-backend/internal/submission"
)

// Handler handles HTTP requests for store lifecycle operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers store routes on an authenticated router group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/submission", h.createSubmission)

	stores := router.Group("/stores")
	{
		stores.GET("", h.listByStatus)
		stores.GET("/stats", h.stats)
		stores.GET("/owner/:ownerId", h.listByOwner)
		stores.GET("/:id", h.getStore)
		stores.POST("/:id/archive", h.archiveStore)
	}
}

type submissionRequest struct {
	submission.StorePayload
	// ForceCreate is the explicit "create anyway" choice after a duplicate
	// conflict.
	ForceCreate bool `json:"force_create"`
}

// createSubmission handles POST /submission, the direct form path.
func (h *Handler) createSubmission(c *gin.Context) {
	principal, ok := auth.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized, verrs := submission.Validate(req.StorePayload)
	if verrs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": verrs})
		return
	}

	store, err := h.service.Create(c.Request.Context(), principal, normalized, req.ForceCreate)
	if err != nil {
		if conflict, ok := AsConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"error":             "a matching store already exists",
				"existing_store_id": conflict.ExistingStoreID,
			})
			return
		}
		h.logger.Error("failed to create store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create store"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"store_id": store.ID,
		"status":   store.Status,
		"store":    store,
	})
}

// listByStatus handles GET /stores?status=&cursor=&limit=
func (h *Handler) listByStatus(c *gin.Context) {
	principal, _ := auth.PrincipalID(c)

	status := StoreStatus(c.DefaultQuery("status", string(StatusUnverified)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	page, next, err := h.service.ListByStatus(c.Request.Context(), status, principal, c.Query("cursor"), limit)
	if err != nil {
		h.logger.Error("failed to list stores", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stores"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": page, "next_cursor": next, "count": len(page)})
}

// listByOwner handles GET /stores/owner/:ownerId
func (h *Handler) listByOwner(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("ownerId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner id"})
		return
	}

	list, err := h.service.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list owner stores", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list stores"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}

// getStore handles GET /stores/:id
func (h *Handler) getStore(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return
	}

	store, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get store"})
		return
	}

	c.JSON(http.StatusOK, store)
}

type archiveRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// archiveStore handles POST /stores/:id/archive (moderator action).
func (h *Handler) archiveStore(c *gin.Context) {
	principal, ok := auth.PrincipalID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return
	}

	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, err := h.service.Archive(c.Request.Context(), id, principal, req.Reason)
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
	case errors.Is(err, ErrAlreadyArchived):
		c.JSON(http.StatusOK, gin.H{"status": StatusArchived, "message": "store already archived"})
	case err != nil:
		h.logger.Error("failed to archive store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to archive store"})
	default:
		c.JSON(http.StatusOK, store)
	}
}

// stats handles GET /stores/stats
func (h *Handler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
