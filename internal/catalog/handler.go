package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smmstore/internal/audit"
	"smmstore/internal/auth"
)

type Handler struct {
	repo  Store
	audit audit.Recorder
}

func NewHandler(repo Store, auditLog audit.Recorder) *Handler {
	return &Handler{repo: repo, audit: auditLog}
}

// ListServices godoc
// @Summary      List purchasable services
// @Tags         catalog
// @Produce      json
// @Success      200 {array} Service
// @Router       /services [get]
func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load services"})
		return
	}

	c.JSON(http.StatusOK, services)
}

// AdminListServices godoc
// @Summary      List all services including inactive
// @Tags         admin
// @Produce      json
// @Success      200 {array} Service
// @Router       /admin/services [get]
// @Security     BearerAuth
func (h *Handler) AdminListServices(c *gin.Context) {
	services, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load services"})
		return
	}

	c.JSON(http.StatusOK, services)
}

// CreateService godoc
// @Summary      Create a service
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body CreateServiceRequest true "Service"
// @Success      201 {object} Service
// @Failure      400 {object} api.ErrorResponse
// @Router       /admin/services [post]
// @Security     BearerAuth
func (h *Handler) CreateService(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	var req CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create service"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "service.create", "service", svc.ID, "", svc.Name)

	c.JSON(http.StatusCreated, svc)
}

// UpdateService godoc
// @Summary      Update a service
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        serviceID path int                  true "Service id"
// @Param        request   body UpdateServiceRequest true "Fields to change"
// @Success      200 {object} Service
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/services/{serviceID} [put]
// @Security     BearerAuth
func (h *Handler) UpdateService(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	serviceID, err := strconv.Atoi(c.Param("serviceID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service id"})
		return
	}

	var req UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.repo.Update(c.Request.Context(), serviceID, req)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update service"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "service.update", "service", serviceID, "", svc.Name)

	c.JSON(http.StatusOK, svc)
}

// DeactivateService godoc
// @Summary      Deactivate a service
// @Tags         admin
// @Produce      json
// @Param        serviceID path int true "Service id"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/services/{serviceID} [delete]
// @Security     BearerAuth
func (h *Handler) DeactivateService(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	serviceID, err := strconv.Atoi(c.Param("serviceID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service id"})
		return
	}

	if err := h.repo.Deactivate(c.Request.Context(), serviceID); err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate service"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "service.deactivate", "service", serviceID, "true", "false")

	c.JSON(http.StatusOK, gin.H{"message": "service deactivated"})
}
