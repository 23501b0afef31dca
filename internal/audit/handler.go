package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List godoc
// @Summary      List admin audit entries, newest first
// @Tags         admin
// @Produce      json
// @Param        limit  query int false "Page size"
// @Param        offset query int false "Offset"
// @Success      200 {array} Entry
// @Router       /admin/audit [get]
// @Security     BearerAuth
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
		return
	}

	c.JSON(http.StatusOK, entries)
}
