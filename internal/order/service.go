package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smmstore/internal/audit"
	"smmstore/internal/bankaccount"
	"smmstore/internal/catalog"
	"smmstore/internal/logger"
	"smmstore/internal/metrics"
	"smmstore/internal/user"
	"smmstore/internal/wallet"
)

var (
	ErrNotOrderOwner      = errors.New("order belongs to another user")
	ErrWrongPaymentMethod = errors.New("operation not valid for this payment method")
	ErrInvalidStatus      = errors.New("unknown order status")
	ErrInvalidTransition  = errors.New("transition not allowed from the current status")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrFundingNeedsBank   = errors.New("wallet funding orders must be paid by bank transfer")
	ErrFundingMismatch    = errors.New("wallet funding orders carry no service and the wallet_funding link")
	ErrBankAccountNeeded  = errors.New("bank transfer orders need an active bank account")
)

// Notifier is the outbound email surface the state machine fires into.
// Delivery failures never fail a transition.
type Notifier interface {
	SendStatusChangeEmail(ctx context.Context, to, name, orderNo, newStatus, notes string) error
	SendFundingRequestEmail(ctx context.Context, recipients []string, orderNo string, amountCents int64) error
	SendServiceOrderEmail(ctx context.Context, recipients []string, orderNo, serviceName string, amountCents int64) error
}

// Views invalidates cached order listings after transitions.
type Views interface {
	InvalidateUserOrders(ctx context.Context, userID int)
	GetUserOrders(ctx context.Context, userID int, dest interface{}) bool
	SetUserOrders(ctx context.Context, userID int, orders interface{})
}

// SettingsSource supplies the auto-approval threshold.
type SettingsSource interface {
	AutoApproveMinutes(ctx context.Context) int
}

type Service interface {
	CreateOrder(ctx context.Context, userID int, req CreateOrderRequest) (*Order, error)
	ConfirmBankPayment(ctx context.Context, orderID, userID int) error
	AdminSetStatus(ctx context.Context, orderID int, newStatus Status, notes string, adminID int) error
	AutoAdvance(ctx context.Context, orderID int, reason string, adminID int) error
	SweepOverdue(ctx context.Context, adminID int) (int, error)
	GetOrder(ctx context.Context, orderID, userID int) (*Order, error)
	GetOrderAdmin(ctx context.Context, orderID int) (*Order, error)
	ListUserOrders(ctx context.Context, userID int, limit, offset int) ([]Order, error)
	ListOrders(ctx context.Context, status string, limit, offset int) ([]Order, error)
}

type service struct {
	orders      Store
	ledger      wallet.Ledger
	catalog     catalog.Store
	users       user.Store
	banks       bankaccount.Store
	notifier    Notifier
	audit       audit.Recorder
	views       Views
	settings    SettingsSource
	adminEmails []string
}

func NewService(
	orders Store,
	ledger wallet.Ledger,
	catalogRepo catalog.Store,
	users user.Store,
	banks bankaccount.Store,
	notifier Notifier,
	auditLog audit.Recorder,
	views Views,
	settings SettingsSource,
	adminEmails []string,
) Service {
	return &service{
		orders:      orders,
		ledger:      ledger,
		catalog:     catalogRepo,
		users:       users,
		banks:       banks,
		notifier:    notifier,
		audit:       auditLog,
		views:       views,
		settings:    settings,
		adminEmails: adminEmails,
	}
}

func (s *service) CreateOrder(ctx context.Context, userID int, req CreateOrderRequest) (*Order, error) {
	o := &Order{
		UserID:        userID,
		Link:          req.Link,
		PaymentMethod: req.PaymentMethod,
	}

	isFunding := req.Link == WalletFundingLink || req.ServiceID == nil
	if isFunding {
		// Keep the two funding markers in lockstep.
		if req.ServiceID != nil || req.Link != WalletFundingLink {
			return nil, ErrFundingMismatch
		}
		if req.AmountCents <= 0 {
			return nil, ErrInvalidAmount
		}
		// Funding by wallet would let a user credit themselves.
		if req.PaymentMethod != PaymentBankTransfer {
			return nil, ErrFundingNeedsBank
		}

		o.Quantity = 1
		o.RateCents = req.AmountCents
		o.TotalCents = req.AmountCents
		o.Quality = "standard"
	} else {
		svc, err := s.catalog.GetByID(ctx, *req.ServiceID)
		if err != nil {
			return nil, err
		}
		if !svc.IsActive {
			return nil, catalog.ErrServiceInactive
		}
		if req.Quantity < svc.MinQuantity || req.Quantity > svc.MaxQuantity {
			return nil, catalog.ErrQuantityOutOfRange
		}

		o.ServiceID = &svc.ID
		o.Quantity = req.Quantity
		o.RateCents = svc.RateCents
		o.TotalCents = PriceForQuantity(req.Quantity, svc.RateCents)
		o.Quality = svc.Quality
	}

	switch req.PaymentMethod {
	case PaymentBankTransfer:
		if req.BankAccountID == nil {
			return nil, ErrBankAccountNeeded
		}
		acc, err := s.banks.GetByID(ctx, *req.BankAccountID)
		if err != nil {
			return nil, err
		}
		if !acc.IsActive {
			return nil, ErrBankAccountNeeded
		}
		o.BankAccountID = &acc.ID
		o.Status = StatusAwaitingPayment
	case PaymentWallet:
		o.Status = StatusPending
	default:
		return nil, ErrWrongPaymentMethod
	}

	tx, err := s.orders.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.orders.CreateTx(ctx, tx, o); err != nil {
		return nil, err
	}

	// Wallet payment is taken at creation time; the state machine assumes
	// the money already moved when the order shows up as pending.
	if req.PaymentMethod == PaymentWallet {
		_, err := s.ledger.DebitTx(ctx, tx, userID, o.TotalCents,
			"payment for order "+o.OrderNo, "order_payment", &o.ID, userID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	kind := "service"
	if o.IsWalletFunding() {
		kind = "wallet_funding"
	}
	metrics.RecordOrderCreated(kind, o.PaymentMethod)
	s.views.InvalidateUserOrders(ctx, userID)

	s.notifyNewOrder(ctx, o)

	return o, nil
}

func (s *service) notifyNewOrder(ctx context.Context, o *Order) {
	if len(s.adminEmails) == 0 {
		return
	}

	var err error
	if o.IsWalletFunding() {
		err = s.notifier.SendFundingRequestEmail(ctx, s.adminEmails, o.OrderNo, o.TotalCents)
	} else {
		serviceName := "service"
		if o.ServiceID != nil {
			if svc, svcErr := s.catalog.GetByID(ctx, *o.ServiceID); svcErr == nil {
				serviceName = svc.Name
			}
		}
		err = s.notifier.SendServiceOrderEmail(ctx, s.adminEmails, o.OrderNo, serviceName, o.TotalCents)
	}
	if err != nil {
		logger.Error("admin notification failed", "order_no", o.OrderNo, "error", err)
	}
}

func (s *service) ConfirmBankPayment(ctx context.Context, orderID, userID int) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrNotOrderOwner
	}
	if o.PaymentMethod != PaymentBankTransfer {
		return ErrWrongPaymentMethod
	}
	if !CanUserTransition(o.Status, StatusAwaitingConfirmation) {
		return ErrStatusConflict
	}

	err = s.orders.UpdateStatus(ctx, nil, o.ID, StatusUpdate{
		From: StatusAwaitingPayment,
		To:   StatusAwaitingConfirmation,
	})
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			metrics.RecordStatusConflict()
		}
		return err
	}

	metrics.RecordTransition(string(StatusAwaitingPayment), string(StatusAwaitingConfirmation), "user")
	s.views.InvalidateUserOrders(ctx, userID)
	s.notifyNewOrder(ctx, o)

	return nil
}

func (s *service) AdminSetStatus(ctx context.Context, orderID int, newStatus Status, notes string, adminID int) error {
	if !allStatuses[newStatus] {
		return ErrInvalidStatus
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !CanAdminSet(o.Status, newStatus) {
		return ErrInvalidTransition
	}

	if o.Status == newStatus {
		return s.touch(ctx, o, notes, adminID)
	}

	upd := StatusUpdate{From: o.Status, To: newStatus}
	if notes != "" {
		upd.Notes = &notes
	}

	creditAmount := int64(0)
	creditReference := ""
	switch {
	case newStatus == StatusCompleted:
		upd.SetCompleted = true
		// Approving a funding order is the only path that creates money;
		// the credit and the CAS commit together.
		if o.IsWalletFunding() && o.Status == StatusAwaitingConfirmation {
			creditAmount = o.TotalCents
			creditReference = "funding_approval"
		}
	case newStatus == StatusPending:
		if o.Status == StatusAwaitingConfirmation && o.PaymentMethod == PaymentBankTransfer {
			upd.SetPaymentVerified = true
		}
	case newStatus == StatusFailed || newStatus == StatusRefunded:
		upd.SetCancelled = true
		if newStatus == StatusRefunded && o.Status == StatusAwaitingRefund && o.TotalCents > 0 {
			creditAmount = o.TotalCents
			creditReference = "refund"
		}
	}

	if err := s.transition(ctx, o, upd, creditAmount, creditReference, adminID); err != nil {
		return err
	}

	metrics.RecordTransition(string(o.Status), string(newStatus), "admin")
	s.audit.Record(ctx, adminID, "order.set_status", "order", o.ID, string(o.Status), string(newStatus))
	s.views.InvalidateUserOrders(ctx, o.UserID)
	s.sendStatusEmail(ctx, o, newStatus, notes)

	return nil
}

// touch handles the idempotent re-apply: updated_at moves, an audit row is
// written, nothing else happens.
func (s *service) touch(ctx context.Context, o *Order, notes string, adminID int) error {
	upd := StatusUpdate{From: o.Status, To: o.Status}
	if notes != "" {
		upd.Notes = &notes
	}

	if err := s.orders.UpdateStatus(ctx, nil, o.ID, upd); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			metrics.RecordStatusConflict()
		}
		return err
	}

	s.audit.Record(ctx, adminID, "order.set_status", "order", o.ID, string(o.Status), string(o.Status))
	return nil
}

// transition runs the CAS write and any wallet credit in one database
// transaction. A failed credit rolls the status change back, so the order
// stays where it was instead of completing without money moving.
func (s *service) transition(ctx context.Context, o *Order, upd StatusUpdate, creditAmount int64, creditReference string, actorID int) error {
	tx, err := s.orders.DB().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.orders.UpdateStatus(ctx, tx, o.ID, upd); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			metrics.RecordStatusConflict()
		}
		return err
	}

	if creditAmount > 0 {
		description := "wallet funding for order " + o.OrderNo
		if creditReference == "refund" {
			description = "refund for order " + o.OrderNo
		}

		_, err := s.ledger.CreditTx(ctx, tx, o.UserID, creditAmount, description, creditReference, &o.ID, actorID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if creditAmount > 0 {
		metrics.RecordWalletCredit(creditReference)
	}

	return nil
}

func (s *service) sendStatusEmail(ctx context.Context, o *Order, newStatus Status, notes string) {
	owner, err := s.users.FindByID(ctx, o.UserID)
	if err != nil {
		logger.Error("status email skipped, owner lookup failed", "order_no", o.OrderNo, "error", err)
		return
	}

	if err := s.notifier.SendStatusChangeEmail(ctx, owner.Email, owner.Name, o.OrderNo, string(newStatus), notes); err != nil {
		logger.Error("status email failed", "order_no", o.OrderNo, "error", err)
	}
}

func (s *service) AutoAdvance(ctx context.Context, orderID int, reason string, adminID int) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusAwaitingConfirmation {
		return ErrStatusConflict
	}

	note := "auto-approved: " + reason
	target := StatusPending
	upd := StatusUpdate{From: StatusAwaitingConfirmation, Notes: &note}

	creditAmount := int64(0)
	creditReference := ""
	if o.IsWalletFunding() {
		target = StatusCompleted
		upd.SetCompleted = true
		creditAmount = o.TotalCents
		creditReference = "funding_approval"
	} else if o.PaymentMethod == PaymentBankTransfer {
		upd.SetPaymentVerified = true
	}
	upd.To = target

	if err := s.transition(ctx, o, upd, creditAmount, creditReference, adminID); err != nil {
		if !errors.Is(err, ErrStatusConflict) {
			// The rollback left the order in awaiting_confirmation; leave a
			// trace so the failed auto-approval is visible to operators.
			noteErr := s.orders.AppendNote(ctx, o.ID,
				fmt.Sprintf("automatic approval failed: %v", err))
			if noteErr != nil {
				logger.Error("failed to record auto-approval failure", "order_id", o.ID, "error", noteErr)
			}
		}
		return err
	}

	metrics.RecordTransition(string(StatusAwaitingConfirmation), string(target), "auto")
	s.audit.Record(ctx, adminID, "order.auto_advance", "order", o.ID,
		string(StatusAwaitingConfirmation), string(target))
	s.views.InvalidateUserOrders(ctx, o.UserID)
	s.sendStatusEmail(ctx, o, target, note)

	return nil
}

// SweepOverdue advances every confirmation-stage order older than the
// configured threshold. Conflicts from racing admins are skipped, not
// failed.
func (s *service) SweepOverdue(ctx context.Context, adminID int) (int, error) {
	minutes := s.settings.AutoApproveMinutes(ctx)
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)

	overdue, err := s.orders.ListOverdueAwaitingConfirmation(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, o := range overdue {
		reason := fmt.Sprintf("no admin action within %d minutes", minutes)
		if err := s.AutoAdvance(ctx, o.ID, reason, adminID); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				continue
			}
			logger.Error("sweep: auto-advance failed", "order_id", o.ID, "error", err)
			continue
		}
		advanced++
	}

	return advanced, nil
}

func (s *service) GetOrder(ctx context.Context, orderID, userID int) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		// Hide other users' orders entirely.
		return nil, ErrOrderNotFound
	}

	return o, nil
}

func (s *service) GetOrderAdmin(ctx context.Context, orderID int) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *service) ListUserOrders(ctx context.Context, userID int, limit, offset int) ([]Order, error) {
	// Cache only the default first page, which is what the storefront
	// polls.
	cacheable := offset == 0 && (limit == 0 || limit == 50)

	if cacheable {
		var cached []Order
		if s.views.GetUserOrders(ctx, userID, &cached) {
			return cached, nil
		}
	}

	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.views.SetUserOrders(ctx, userID, orders)
	}

	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, status string, limit, offset int) ([]Order, error) {
	if status == "" {
		return s.orders.ListAll(ctx, limit, offset)
	}

	st, ok := ParseStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	return s.orders.ListByStatus(ctx, st, limit, offset)
}
