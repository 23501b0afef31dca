package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smmstore/internal/auth"
	"smmstore/internal/bankaccount"
	"smmstore/internal/catalog"
	"smmstore/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, bankaccount.ErrBankAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotOrderOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
	case errors.Is(err, ErrWrongPaymentMethod),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrFundingNeedsBank),
		errors.Is(err, ErrFundingMismatch),
		errors.Is(err, ErrBankAccountNeeded),
		errors.Is(err, catalog.ErrServiceInactive),
		errors.Is(err, catalog.ErrQuantityOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CreateOrder godoc
// @Summary      Place an order
// @Description  Creates a service order or a wallet funding order. Wallet
// @Description  payment is debited immediately; bank transfers start in
// @Description  awaiting_payment.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body CreateOrderRequest true "Order"
// @Success      201 {object} Order
// @Failure      400 {object} api.ErrorResponse
// @Router       /orders [post]
// @Security     BearerAuth
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.service.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

// ListMyOrders godoc
// @Summary      List own orders
// @Tags         orders
// @Produce      json
// @Param        limit  query int false "Page size"
// @Param        offset query int false "Offset"
// @Success      200 {array} Order
// @Router       /orders [get]
// @Security     BearerAuth
func (h *Handler) ListMyOrders(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.service.ListUserOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder godoc
// @Summary      Get one of my orders
// @Tags         orders
// @Produce      json
// @Param        orderID path int true "Order id"
// @Success      200 {object} Order
// @Failure      404 {object} api.ErrorResponse
// @Router       /orders/{orderID} [get]
// @Security     BearerAuth
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := strconv.Atoi(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	o, err := h.service.GetOrder(c.Request.Context(), orderID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// ConfirmBankPayment godoc
// @Summary      Report a sent bank transfer
// @Description  Moves the order from awaiting_payment to
// @Description  awaiting_confirmation and alerts the admin team.
// @Tags         orders
// @Produce      json
// @Param        orderID path int true "Order id"
// @Success      200 {object} api.MessageResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /orders/{orderID}/confirm-payment [post]
// @Security     BearerAuth
func (h *Handler) ConfirmBankPayment(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := strconv.Atoi(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	if err := h.service.ConfirmBankPayment(c.Request.Context(), orderID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment reported, awaiting confirmation"})
}

// AdminListOrders godoc
// @Summary      List orders, optionally by status
// @Tags         admin
// @Produce      json
// @Param        status query string false "Status filter"
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Offset"
// @Success      200 {array} Order
// @Router       /admin/orders [get]
// @Security     BearerAuth
func (h *Handler) AdminListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.service.ListOrders(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// AdminGetOrder godoc
// @Summary      Get any order
// @Tags         admin
// @Produce      json
// @Param        orderID path int true "Order id"
// @Success      200 {object} Order
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/orders/{orderID} [get]
// @Security     BearerAuth
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	o, err := h.service.GetOrderAdmin(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// AdminSetStatus godoc
// @Summary      Set an order's status
// @Description  Guarded transition: fails with 409 when the order moved
// @Description  under a concurrent admin. Approving a funding order
// @Description  credits the owner's wallet atomically.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        orderID path int                   true "Order id"
// @Param        request body AdminSetStatusRequest true "Target status"
// @Success      200 {object} api.MessageResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /admin/orders/{orderID}/status [put]
// @Security     BearerAuth
func (h *Handler) AdminSetStatus(c *gin.Context) {
	adminID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := strconv.Atoi(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req AdminSetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newStatus, ok := ParseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + req.Status})
		return
	}

	if err := h.service.AdminSetStatus(c.Request.Context(), orderID, newStatus, req.Notes, adminID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// AutoAdvance godoc
// @Summary      Advance an overdue order
// @Description  Applies the same effect as an admin approval, tagged with
// @Description  the given reason.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        orderID path int                true "Order id"
// @Param        request body AutoAdvanceRequest false "Reason"
// @Success      200 {object} api.MessageResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /admin/orders/{orderID}/auto-advance [post]
// @Security     BearerAuth
func (h *Handler) AutoAdvance(c *gin.Context) {
	adminID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := strconv.Atoi(c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req AutoAdvanceRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual auto-advance"
	}

	if err := h.service.AutoAdvance(c.Request.Context(), orderID, req.Reason, adminID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "order advanced"})
}

// SweepOverdue godoc
// @Summary      Auto-advance all overdue orders
// @Tags         admin
// @Produce      json
// @Success      200 {object} api.MessageResponse
// @Router       /admin/orders/sweep [post]
// @Security     BearerAuth
func (h *Handler) SweepOverdue(c *gin.Context) {
	adminID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	advanced, err := h.service.SweepOverdue(c.Request.Context(), adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sweep finished", "advanced": advanced})
}
