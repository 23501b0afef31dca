package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smmstore/internal/bankaccount"
	"smmstore/internal/catalog"
	"smmstore/internal/user"
	"smmstore/internal/wallet"
)

// Mock repositories
type MockOrderStore struct {
	mock.Mock
	db *sqlx.DB
}
type MockLedger struct{ mock.Mock }
type MockCatalogStore struct{ mock.Mock }
type MockUserStore struct{ mock.Mock }
type MockBankStore struct{ mock.Mock }
type MockNotifier struct{ mock.Mock }
type MockAudit struct{ mock.Mock }
type MockViews struct{ mock.Mock }
type MockSettings struct{ mock.Mock }

func (m *MockOrderStore) DB() *sqlx.DB { return m.db }

func (m *MockOrderStore) CreateTx(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	args := m.Called(ctx, tx, o)
	return args.Error(0)
}

func (m *MockOrderStore) GetByID(ctx context.Context, id int) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrderStore) ListByUser(ctx context.Context, userID int, limit, offset int) ([]Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockOrderStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Order, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockOrderStore) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockOrderStore) ListOverdueAwaitingConfirmation(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, orderID int, upd StatusUpdate) error {
	args := m.Called(ctx, tx, orderID, upd)
	return args.Error(0)
}

func (m *MockOrderStore) AppendNote(ctx context.Context, orderID int, note string) error {
	args := m.Called(ctx, orderID, note)
	return args.Error(0)
}

func (m *MockLedger) Credit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	args := m.Called(ctx, userID, amountCents, description, reference, orderID, actorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Debit(ctx context.Context, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	args := m.Called(ctx, userID, amountCents, description, reference, orderID, actorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) CreditTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	args := m.Called(ctx, tx, userID, amountCents, description, reference, orderID, actorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) DebitTx(ctx context.Context, tx *sqlx.Tx, userID int, amountCents int64, description, reference string, orderID *int, actorID int) (int64, error) {
	args := m.Called(ctx, tx, userID, amountCents, description, reference, orderID, actorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) GetBalance(ctx context.Context, userID int) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) GetTransactions(ctx context.Context, userID int, limit, offset int) ([]wallet.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wallet.Transaction), args.Error(1)
}

func (m *MockLedger) CountByOrder(ctx context.Context, orderID int) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogStore) Create(ctx context.Context, req catalog.CreateServiceRequest) (*catalog.Service, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Service), args.Error(1)
}

func (m *MockCatalogStore) GetByID(ctx context.Context, id int) (*catalog.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Service), args.Error(1)
}

func (m *MockCatalogStore) ListActive(ctx context.Context) ([]catalog.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Service), args.Error(1)
}

func (m *MockCatalogStore) ListAll(ctx context.Context) ([]catalog.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Service), args.Error(1)
}

func (m *MockCatalogStore) Update(ctx context.Context, id int, req catalog.UpdateServiceRequest) (*catalog.Service, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Service), args.Error(1)
}

func (m *MockCatalogStore) Deactivate(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserStore) Create(ctx context.Context, name, email, passwordHash, role string) (*user.User, error) {
	args := m.Called(ctx, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id int) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) RoleAndActive(ctx context.Context, userID int) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockUserStore) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func (m *MockUserStore) SetActive(ctx context.Context, userID int, active bool) error {
	return m.Called(ctx, userID, active).Error(0)
}

func (m *MockUserStore) SetRole(ctx context.Context, userID int, role string) error {
	return m.Called(ctx, userID, role).Error(0)
}

func (m *MockBankStore) Create(ctx context.Context, req bankaccount.CreateBankAccountRequest) (*bankaccount.BankAccount, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankaccount.BankAccount), args.Error(1)
}

func (m *MockBankStore) GetByID(ctx context.Context, id int) (*bankaccount.BankAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankaccount.BankAccount), args.Error(1)
}

func (m *MockBankStore) ListActive(ctx context.Context) ([]bankaccount.BankAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bankaccount.BankAccount), args.Error(1)
}

func (m *MockBankStore) ListAll(ctx context.Context) ([]bankaccount.BankAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bankaccount.BankAccount), args.Error(1)
}

func (m *MockBankStore) Update(ctx context.Context, id int, req bankaccount.UpdateBankAccountRequest) (*bankaccount.BankAccount, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bankaccount.BankAccount), args.Error(1)
}

func (m *MockBankStore) Delete(ctx context.Context, id int) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockNotifier) SendStatusChangeEmail(ctx context.Context, to, name, orderNo, newStatus, notes string) error {
	return m.Called(ctx, to, name, orderNo, newStatus, notes).Error(0)
}

func (m *MockNotifier) SendFundingRequestEmail(ctx context.Context, recipients []string, orderNo string, amountCents int64) error {
	return m.Called(ctx, recipients, orderNo, amountCents).Error(0)
}

func (m *MockNotifier) SendServiceOrderEmail(ctx context.Context, recipients []string, orderNo, serviceName string, amountCents int64) error {
	return m.Called(ctx, recipients, orderNo, serviceName, amountCents).Error(0)
}

func (m *MockAudit) Record(ctx context.Context, adminID int, action, entity string, entityID int, oldValue, newValue string) {
	m.Called(ctx, adminID, action, entity, entityID, oldValue, newValue)
}

func (m *MockViews) InvalidateUserOrders(ctx context.Context, userID int) {
	m.Called(ctx, userID)
}

func (m *MockViews) GetUserOrders(ctx context.Context, userID int, dest interface{}) bool {
	return m.Called(ctx, userID, dest).Bool(0)
}

func (m *MockViews) SetUserOrders(ctx context.Context, userID int, orders interface{}) {
	m.Called(ctx, userID, orders)
}

func (m *MockSettings) AutoApproveMinutes(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

type serviceFixture struct {
	orders   *MockOrderStore
	ledger   *MockLedger
	catalog  *MockCatalogStore
	users    *MockUserStore
	banks    *MockBankStore
	notifier *MockNotifier
	audit    *MockAudit
	views    *MockViews
	settings *MockSettings
	sqlMock  sqlmock.Sqlmock
	svc      Service
}

func newFixture(t *testing.T) *serviceFixture {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &serviceFixture{
		orders:   &MockOrderStore{db: sqlx.NewDb(db, "sqlmock")},
		ledger:   new(MockLedger),
		catalog:  new(MockCatalogStore),
		users:    new(MockUserStore),
		banks:    new(MockBankStore),
		notifier: new(MockNotifier),
		audit:    new(MockAudit),
		views:    new(MockViews),
		settings: new(MockSettings),
		sqlMock:  sqlMock,
	}
	f.svc = NewService(
		f.orders, f.ledger, f.catalog, f.users, f.banks,
		f.notifier, f.audit, f.views, f.settings,
		[]string{"admin@smmstore.io"},
	)

	return f
}

func fundingOrder(id int, status Status) *Order {
	return &Order{
		ID: id, OrderNo: "ORD-100010", UserID: 4,
		Quantity: 1, RateCents: 5000, TotalCents: 5000,
		Status: status, Link: WalletFundingLink,
		Quality: "standard", PaymentMethod: PaymentBankTransfer,
	}
}

func serviceOrder(id int, status Status, method string) *Order {
	serviceID := 3
	return &Order{
		ID: id, OrderNo: "ORD-100011", UserID: 4, ServiceID: &serviceID,
		Quantity: 1000, RateCents: 250, TotalCents: 250,
		Status: status, Link: "https://example.com/p/1",
		Quality: "standard", PaymentMethod: method,
	}
}

func TestCreateFundingOrderRequiresBankTransfer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), 4, CreateOrderRequest{
		Link:          WalletFundingLink,
		AmountCents:   5000,
		PaymentMethod: PaymentWallet,
	})
	assert.ErrorIs(t, err, ErrFundingNeedsBank)
}

func TestCreateFundingOrderRejectsBadAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), 4, CreateOrderRequest{
		Link:          WalletFundingLink,
		AmountCents:   0,
		PaymentMethod: PaymentBankTransfer,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.CreateOrder(context.Background(), 4, CreateOrderRequest{
		Link:          WalletFundingLink,
		AmountCents:   -100,
		PaymentMethod: PaymentBankTransfer,
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateFundingOrderRejectsMarkerMismatch(t *testing.T) {
	f := newFixture(t)

	serviceID := 3
	_, err := f.svc.CreateOrder(context.Background(), 4, CreateOrderRequest{
		Link:          WalletFundingLink,
		ServiceID:     &serviceID,
		AmountCents:   5000,
		PaymentMethod: PaymentBankTransfer,
	})
	assert.ErrorIs(t, err, ErrFundingMismatch)
}

func TestCreateServiceOrderByWalletDebitsInSameTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.catalog.On("GetByID", ctx, 3).Return(&catalog.Service{
		ID: 3, Name: "IG Followers", RateCents: 250,
		MinQuantity: 100, MaxQuantity: 10000, Quality: "standard", IsActive: true,
	}, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("CreateTx", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		o := args.Get(2).(*Order)
		o.ID = 20
		o.OrderNo = "ORD-100020"
	}).Return(nil)
	f.ledger.On("DebitTx", ctx, mock.Anything, 4, int64(250),
		"payment for order ORD-100020", "order_payment", mock.Anything, 4).
		Return(int64(750), nil)
	f.sqlMock.ExpectCommit()

	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.notifier.On("SendServiceOrderEmail", ctx, []string{"admin@smmstore.io"},
		"ORD-100020", "IG Followers", int64(250)).Return(nil)

	o, err := f.svc.CreateOrder(ctx, 4, CreateOrderRequest{
		ServiceID:     intPtr(3),
		Quantity:      1000,
		PaymentMethod: PaymentWallet,
		Link:          "https://example.com/p/1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(250), o.TotalCents)

	f.ledger.AssertExpectations(t)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestCreateServiceOrderInsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.catalog.On("GetByID", ctx, 3).Return(&catalog.Service{
		ID: 3, Name: "IG Followers", RateCents: 250,
		MinQuantity: 100, MaxQuantity: 10000, Quality: "standard", IsActive: true,
	}, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("CreateTx", ctx, mock.Anything, mock.Anything).Return(nil)
	f.ledger.On("DebitTx", ctx, mock.Anything, 4, int64(250),
		mock.Anything, "order_payment", mock.Anything, 4).
		Return(int64(0), wallet.ErrInsufficientFunds)
	f.sqlMock.ExpectRollback()

	_, err := f.svc.CreateOrder(ctx, 4, CreateOrderRequest{
		ServiceID:     intPtr(3),
		Quantity:      1000,
		PaymentMethod: PaymentWallet,
		Link:          "https://example.com/p/1",
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestCreateServiceOrderQuantityOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.catalog.On("GetByID", ctx, 3).Return(&catalog.Service{
		ID: 3, RateCents: 250, MinQuantity: 100, MaxQuantity: 10000, IsActive: true,
	}, nil)

	_, err := f.svc.CreateOrder(ctx, 4, CreateOrderRequest{
		ServiceID:     intPtr(3),
		Quantity:      50,
		PaymentMethod: PaymentWallet,
		Link:          "https://example.com/p/1",
	})
	assert.ErrorIs(t, err, catalog.ErrQuantityOutOfRange)
}

func TestConfirmBankPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusAwaitingPayment)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)
	f.orders.On("UpdateStatus", ctx, (*sqlx.Tx)(nil), 10, StatusUpdate{
		From: StatusAwaitingPayment,
		To:   StatusAwaitingConfirmation,
	}).Return(nil)
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.notifier.On("SendFundingRequestEmail", ctx, []string{"admin@smmstore.io"},
		"ORD-100010", int64(5000)).Return(nil)

	err := f.svc.ConfirmBankPayment(ctx, 10, 4)
	require.NoError(t, err)
	f.orders.AssertExpectations(t)
}

func TestConfirmBankPaymentWrongOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusAwaitingPayment), nil)

	err := f.svc.ConfirmBankPayment(ctx, 10, 99)
	assert.ErrorIs(t, err, ErrNotOrderOwner)
}

func TestConfirmBankPaymentWrongState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusAwaitingConfirmation), nil)

	err := f.svc.ConfirmBankPayment(ctx, 10, 4)
	assert.ErrorIs(t, err, ErrStatusConflict)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveFundingCreditsWalletOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusAwaitingConfirmation)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.MatchedBy(func(upd StatusUpdate) bool {
		return upd.From == StatusAwaitingConfirmation && upd.To == StatusCompleted && upd.SetCompleted
	})).Return(nil)
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(5000),
		"wallet funding for order ORD-100010", "funding_approval", mock.Anything, 2).
		Return(int64(5000), nil)
	f.sqlMock.ExpectCommit()

	f.audit.On("Record", ctx, 2, "order.set_status", "order", 10,
		"awaiting_confirmation", "completed").Return()
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.users.On("FindByID", ctx, 4).Return(&user.User{ID: 4, Name: "Ada", Email: "ada@example.com"}, nil)
	f.notifier.On("SendStatusChangeEmail", ctx, "ada@example.com", "Ada",
		"ORD-100010", "completed", "").Return(nil)

	err := f.svc.AdminSetStatus(ctx, 10, StatusCompleted, "", 2)
	require.NoError(t, err)

	f.ledger.AssertNumberOfCalls(t, "CreditTx", 1)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestApproveFundingConflictSkipsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two admins race: the CAS loses, so no credit may happen.
	o := fundingOrder(10, StatusAwaitingConfirmation)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.Anything).Return(ErrStatusConflict)
	f.sqlMock.ExpectRollback()

	err := f.svc.AdminSetStatus(ctx, 10, StatusCompleted, "", 2)
	assert.ErrorIs(t, err, ErrStatusConflict)

	f.ledger.AssertNotCalled(t, "CreditTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendStatusChangeEmail",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestApproveFundingCreditFailureRollsBackStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusAwaitingConfirmation)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.Anything).Return(nil)
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(5000),
		mock.Anything, "funding_approval", mock.Anything, 2).
		Return(int64(0), errors.New("ledger insert failed"))
	f.sqlMock.ExpectRollback()

	err := f.svc.AdminSetStatus(ctx, 10, StatusCompleted, "", 2)
	require.Error(t, err)

	// Both writes rolled back together: no audit row, no email.
	f.audit.AssertNotCalled(t, "Record",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestReapplySameStatusIsIdempotentTouch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusCompleted)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)
	f.orders.On("UpdateStatus", ctx, (*sqlx.Tx)(nil), 10, StatusUpdate{
		From: StatusCompleted,
		To:   StatusCompleted,
	}).Return(nil)
	f.audit.On("Record", ctx, 2, "order.set_status", "order", 10,
		"completed", "completed").Return()

	err := f.svc.AdminSetStatus(ctx, 10, StatusCompleted, "", 2)
	require.NoError(t, err)

	// A touch moves no money and notifies nobody.
	f.ledger.AssertNotCalled(t, "CreditTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendStatusChangeEmail",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestAdminCannotLeaveTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusCompleted), nil)

	err := f.svc.AdminSetStatus(ctx, 10, StatusPending, "", 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminSetStatusUnknownStatus(t *testing.T) {
	f := newFixture(t)

	err := f.svc.AdminSetStatus(context.Background(), 10, Status("shipped"), "", 2)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRefundCreditsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := serviceOrder(11, StatusAwaitingRefund, PaymentWallet)
	f.orders.On("GetByID", ctx, 11).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 11, mock.MatchedBy(func(upd StatusUpdate) bool {
		return upd.From == StatusAwaitingRefund && upd.To == StatusRefunded && upd.SetCancelled
	})).Return(nil)
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(250),
		"refund for order ORD-100011", "refund", mock.Anything, 2).
		Return(int64(1000), nil)
	f.sqlMock.ExpectCommit()

	f.audit.On("Record", ctx, 2, "order.set_status", "order", 11,
		"awaiting_refund", "refunded").Return()
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.users.On("FindByID", ctx, 4).Return(&user.User{ID: 4, Name: "Ada", Email: "ada@example.com"}, nil)
	f.notifier.On("SendStatusChangeEmail", ctx, "ada@example.com", "Ada",
		"ORD-100011", "refunded", "duplicate order").Return(nil)

	err := f.svc.AdminSetStatus(ctx, 11, StatusRefunded, "duplicate order", 2)
	require.NoError(t, err)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestAutoAdvanceFundingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusAwaitingConfirmation)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.MatchedBy(func(upd StatusUpdate) bool {
		return upd.To == StatusCompleted && upd.SetCompleted &&
			upd.Notes != nil && *upd.Notes == "auto-approved: no admin response"
	})).Return(nil)
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(5000),
		mock.Anything, "funding_approval", mock.Anything, 2).
		Return(int64(5000), nil)
	f.sqlMock.ExpectCommit()

	f.audit.On("Record", ctx, 2, "order.auto_advance", "order", 10,
		"awaiting_confirmation", "completed").Return()
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.users.On("FindByID", ctx, 4).Return(&user.User{ID: 4, Name: "Ada", Email: "ada@example.com"}, nil)
	f.notifier.On("SendStatusChangeEmail", ctx, "ada@example.com", "Ada",
		"ORD-100010", "completed", "auto-approved: no admin response").Return(nil)

	err := f.svc.AutoAdvance(ctx, 10, "no admin response", 2)
	require.NoError(t, err)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestAutoAdvanceBankServiceOrderVerifiesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := serviceOrder(11, StatusAwaitingConfirmation, PaymentBankTransfer)
	f.orders.On("GetByID", ctx, 11).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 11, mock.MatchedBy(func(upd StatusUpdate) bool {
		return upd.To == StatusPending && upd.SetPaymentVerified && !upd.SetCompleted
	})).Return(nil)
	f.sqlMock.ExpectCommit()

	f.audit.On("Record", ctx, 2, "order.auto_advance", "order", 11,
		"awaiting_confirmation", "pending").Return()
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.users.On("FindByID", ctx, 4).Return(&user.User{ID: 4, Name: "Ada", Email: "ada@example.com"}, nil)
	f.notifier.On("SendStatusChangeEmail", ctx, mock.Anything, mock.Anything,
		mock.Anything, "pending", mock.Anything).Return(nil)

	err := f.svc.AutoAdvance(ctx, 11, "threshold reached", 2)
	require.NoError(t, err)

	// A service order auto-advance moves no money.
	f.ledger.AssertNotCalled(t, "CreditTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoAdvanceWrongStateConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusPending), nil)

	err := f.svc.AutoAdvance(ctx, 10, "x", 2)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestAutoAdvanceCreditFailureLeavesNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := fundingOrder(10, StatusAwaitingConfirmation)
	f.orders.On("GetByID", ctx, 10).Return(o, nil)

	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.Anything).Return(nil)
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(5000),
		mock.Anything, "funding_approval", mock.Anything, 2).
		Return(int64(0), errors.New("ledger down"))
	f.sqlMock.ExpectRollback()

	f.orders.On("AppendNote", ctx, 10, "automatic approval failed: ledger down").Return(nil)

	err := f.svc.AutoAdvance(ctx, 10, "x", 2)
	require.Error(t, err)
	f.orders.AssertCalled(t, "AppendNote", ctx, 10, "automatic approval failed: ledger down")
}

func TestSweepOverdueSkipsConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.settings.On("AutoApproveMinutes", ctx).Return(60)

	stale := []Order{*fundingOrder(10, StatusAwaitingConfirmation), *fundingOrder(12, StatusAwaitingConfirmation)}
	stale[1].ID = 12
	f.orders.On("ListOverdueAwaitingConfirmation", ctx, mock.Anything, 100).Return(stale, nil)

	// First order advances cleanly.
	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusAwaitingConfirmation), nil)
	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 10, mock.Anything).Return(nil).Once()
	f.ledger.On("CreditTx", ctx, mock.Anything, 4, int64(5000),
		mock.Anything, "funding_approval", mock.Anything, 1).
		Return(int64(5000), nil).Once()
	f.sqlMock.ExpectCommit()
	f.audit.On("Record", ctx, 1, "order.auto_advance", "order", 10,
		mock.Anything, mock.Anything).Return()
	f.views.On("InvalidateUserOrders", ctx, 4).Return()
	f.users.On("FindByID", ctx, 4).Return(&user.User{ID: 4, Name: "Ada", Email: "ada@example.com"}, nil)
	f.notifier.On("SendStatusChangeEmail", ctx, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Second order lost the race; the sweep skips it silently.
	second := fundingOrder(12, StatusAwaitingConfirmation)
	second.ID = 12
	f.orders.On("GetByID", ctx, 12).Return(second, nil)
	f.sqlMock.ExpectBegin()
	f.orders.On("UpdateStatus", ctx, mock.Anything, 12, mock.Anything).Return(ErrStatusConflict).Once()
	f.sqlMock.ExpectRollback()

	advanced, err := f.svc.SweepOverdue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)
}

func TestGetOrderHidesOtherUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, 10).Return(fundingOrder(10, StatusPending), nil)

	_, err := f.svc.GetOrder(ctx, 10, 99)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	o, err := f.svc.GetOrder(ctx, 10, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, o.ID)
}

func TestListUserOrdersUsesCacheForFirstPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Cache miss: hits the store, then fills the cache.
	f.views.On("GetUserOrders", ctx, 4, mock.Anything).Return(false).Once()
	want := []Order{*fundingOrder(10, StatusPending)}
	f.orders.On("ListByUser", ctx, 4, 0, 0).Return(want, nil).Once()
	f.views.On("SetUserOrders", ctx, 4, want).Return().Once()

	got, err := f.svc.ListUserOrders(ctx, 4, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Deep pages bypass the cache entirely.
	f.orders.On("ListByUser", ctx, 4, 20, 40).Return([]Order{}, nil).Once()
	_, err = f.svc.ListUserOrders(ctx, 4, 20, 40)
	require.NoError(t, err)
	f.views.AssertNumberOfCalls(t, "GetUserOrders", 1)
}

func TestListOrdersRejectsUnknownStatusFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListOrders(context.Background(), "shipped", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func intPtr(n int) *int { return &n }
