package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smmstore/internal/audit"
	"smmstore/internal/auth"
	"smmstore/internal/metrics"
)

type Handler struct {
	ledger Ledger
	audit  audit.Recorder
}

func NewHandler(ledger Ledger, auditLog audit.Recorder) *Handler {
	return &Handler{ledger: ledger, audit: auditLog}
}

// GetBalance godoc
// @Summary      Current wallet balance
// @Tags         wallet
// @Produce      json
// @Success      200 {object} BalanceResponse
// @Failure      401 {object} api.ErrorResponse
// @Router       /wallet [get]
// @Security     BearerAuth
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet balance"})
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{UserID: userID, BalanceCents: balance})
}

// ListTransactions godoc
// @Summary      Wallet transaction history
// @Tags         wallet
// @Produce      json
// @Param        limit  query int false "Page size"
// @Param        offset query int false "Offset"
// @Success      200 {array} Transaction
// @Router       /wallet/transactions [get]
// @Security     BearerAuth
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.ledger.GetTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}

// AdminAdjust godoc
// @Summary      Adjust a user's wallet balance
// @Description  Credits or debits a user's wallet. Admin only; every
// @Description  adjustment leaves a ledger row and an audit entry.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        userID  path int           true "Target user id"
// @Param        request body AdjustRequest true "Adjustment"
// @Success      200 {object} AdjustResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/users/{userID}/wallet [post]
// @Security     BearerAuth
func (h *Handler) AdminAdjust(c *gin.Context) {
	adminID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	targetID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	description := req.Description
	if description == "" {
		description = "manual adjustment by admin"
	}

	ctx := c.Request.Context()

	var newBalance int64
	switch req.Operation {
	case "add":
		newBalance, err = h.ledger.Credit(ctx, targetID, req.AmountCents, description, "admin_adjustment", req.OrderID, adminID)
	case "subtract":
		newBalance, err = h.ledger.Debit(ctx, targetID, req.AmountCents, description, "admin_adjustment", req.OrderID, adminID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "operation must be add or subtract"})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient wallet balance"})
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to adjust wallet"})
		}
		return
	}

	metrics.RecordWalletAdjustment(req.Operation)
	h.audit.Record(ctx, adminID, "wallet.adjust", "user", targetID,
		req.Operation, strconv.FormatInt(req.AmountCents, 10))

	c.JSON(http.StatusOK, AdjustResponse{UserID: targetID, NewBalanceCents: newBalance})
}
