package bankaccount

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

// ListActive godoc
// @Summary      List active bank accounts for manual transfer
// @Tags         bank-accounts
// @Produce      json
// @Success      200 {array} BankAccount
// @Router       /bank-accounts [get]
func (h *Handler) ListActive(c *gin.Context) {
	accounts, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bank accounts"})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// AdminList godoc
// @Summary      List all bank accounts
// @Tags         admin
// @Produce      json
// @Success      200 {array} BankAccount
// @Router       /admin/bank-accounts [get]
// @Security     BearerAuth
func (h *Handler) AdminList(c *gin.Context) {
	accounts, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bank accounts"})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// Create godoc
// @Summary      Create a bank account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body CreateBankAccountRequest true "Bank account"
// @Success      201 {object} BankAccount
// @Failure      400 {object} api.ErrorResponse
// @Router       /admin/bank-accounts [post]
// @Security     BearerAuth
func (h *Handler) Create(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	var req CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bank account"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "bank_account.create", "bank_account", acc.ID, "", acc.BankName)

	c.JSON(http.StatusCreated, acc)
}

// Update godoc
// @Summary      Update a bank account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        accountID path int                      true "Account id"
// @Param        request   body UpdateBankAccountRequest true "Fields to change"
// @Success      200 {object} BankAccount
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/bank-accounts/{accountID} [put]
// @Security     BearerAuth
func (h *Handler) Update(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	accountID, err := strconv.Atoi(c.Param("accountID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	var req UpdateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.repo.Update(c.Request.Context(), accountID, req)
	if err != nil {
		if errors.Is(err, ErrBankAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bank account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update bank account"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "bank_account.update", "bank_account", accountID, "", acc.BankName)

	c.JSON(http.StatusOK, acc)
}

// Delete godoc
// @Summary      Delete a bank account
// @Description  Orders that referenced the account keep their history;
// @Description  their bank account reference is cleared.
// @Tags         admin
// @Produce      json
// @Param        accountID path int true "Account id"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /admin/bank-accounts/{accountID} [delete]
// @Security     BearerAuth
func (h *Handler) Delete(c *gin.Context) {
	adminID, _ := auth.GetUserID(c)

	accountID, err := strconv.Atoi(c.Param("accountID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	detached, err := h.repo.Delete(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrBankAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "bank account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bank account"})
		return
	}

	h.audit.Record(c.Request.Context(), adminID, "bank_account.delete", "bank_account", accountID,
		strconv.Itoa(detached)+" orders detached", "")

	c.JSON(http.StatusOK, gin.H{"message": "bank account deleted", "orders_detached": detached})
}
