package settings

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smmstore/internal/audit"
	"smmstore/internal/auth"
)

type Handler struct {
	repo     *Repository
	auditLog audit.Recorder
}

func NewHandler(repo *Repository, auditLog audit.Recorder) *Handler {
	return &Handler{repo: repo, auditLog: auditLog}
}

// List godoc
// @Summary      List platform settings
// @Tags         admin
// @Produce      json
// @Success      200 {array} Setting
// @Router       /admin/settings [get]
// @Security     BearerAuth
func (h *Handler) List(c *gin.Context) {
	out, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, out)
}

type updateRequest struct {
	Value string `json:"value" binding:"required"`
}

// Update godoc
// @Summary      Set a platform setting
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        key     path string        true "Setting key"
// @Param        request body updateRequest true "New value"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Router       /admin/settings/{key} [put]
// @Security     BearerAuth
func (h *Handler) Update(c *gin.Context) {
	adminID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	key := c.Param("key")

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Numeric settings must stay positive integers.
	if key == KeyAutoApproveMinutes {
		minutes, err := strconv.Atoi(req.Value)
		if err != nil || minutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a positive integer"})
			return
		}
	}

	ctx := c.Request.Context()

	oldValue, err := h.repo.Get(ctx, key)
	if err != nil {
		oldValue = ""
	}

	if err := h.repo.Set(ctx, key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save setting"})
		return
	}

	h.auditLog.Record(ctx, adminID, "settings.update", "setting", 0, oldValue, key+"="+req.Value)

	c.JSON(http.StatusOK, gin.H{"message": "setting updated"})
}
