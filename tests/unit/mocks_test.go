package unit

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"
	"rentloop-backend/internal/service"
)

// fakeStore bundles the repository mocks behind the Store contract. Its
// WithinTx runs the callback directly; rollback behavior belongs to the
// postgres layer and is covered by the repos tests.
type fakeStore struct {
	wallets  *MockWalletRepo
	grants   *MockGrantRepo
	rentals  *MockRentalRepo
	products *MockProductRepo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		wallets:  new(MockWalletRepo),
		grants:   new(MockGrantRepo),
		rentals:  new(MockRentalRepo),
		products: new(MockProductRepo),
	}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(r repository.Registry) error) error {
	return fn(s)
}
func (s *fakeStore) Wallets() repository.WalletRepository   { return s.wallets }
func (s *fakeStore) Grants() repository.GrantRepository     { return s.grants }
func (s *fakeStore) Rentals() repository.RentalRepository   { return s.rentals }
func (s *fakeStore) Products() repository.ProductRepository { return s.products }

// MockWalletRepo
type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) Get(ctx context.Context, userID int32) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}
func (m *MockWalletRepo) GetForUpdate(ctx context.Context, userID int32) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}
func (m *MockWalletRepo) CreateIfAbsent(ctx context.Context, userID int32) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *MockWalletRepo) Reserve(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) error {
	args := m.Called(ctx, userID, amountCents, rentalRequestID)
	return args.Error(0)
}
func (m *MockWalletRepo) Release(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error) {
	args := m.Called(ctx, userID, amountCents, rentalRequestID)
	return args.Bool(0), args.Error(1)
}
func (m *MockWalletRepo) Finalize(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error) {
	args := m.Called(ctx, userID, amountCents, rentalRequestID)
	return args.Bool(0), args.Error(1)
}
func (m *MockWalletRepo) CreditPending(ctx context.Context, entry *domain.WalletEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *MockWalletRepo) ConfirmPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletEntry), args.Error(1)
}
func (m *MockWalletRepo) RejectPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletEntry), args.Error(1)
}
func (m *MockWalletRepo) HasPendingPurchase(ctx context.Context, rentalRequestID int32) (bool, error) {
	args := m.Called(ctx, rentalRequestID)
	return args.Bool(0), args.Error(1)
}
func (m *MockWalletRepo) RequestWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	args := m.Called(ctx, userID, amountCents, gatewayRef)
	return args.Error(0)
}
func (m *MockWalletRepo) ConfirmWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	args := m.Called(ctx, userID, amountCents, gatewayRef)
	return args.Error(0)
}
func (m *MockWalletRepo) RejectWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	args := m.Called(ctx, userID, amountCents, gatewayRef)
	return args.Error(0)
}
func (m *MockWalletRepo) ListEntries(ctx context.Context, userID int32, page, pageSize int32) ([]domain.WalletEntry, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return args.Get(0).([]domain.WalletEntry), args.Get(1).(int32), args.Error(2)
}
func (m *MockWalletRepo) SumAcceptedEntries(ctx context.Context, userID int32) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockGrantRepo
type MockGrantRepo struct {
	mock.Mock
}

func (m *MockGrantRepo) Create(ctx context.Context, grant *domain.CreditGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}
func (m *MockGrantRepo) GetByID(ctx context.Context, id int32) (*domain.CreditGrant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditGrant), args.Error(1)
}
func (m *MockGrantRepo) ListByUser(ctx context.Context, userID int32) ([]domain.CreditGrant, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.CreditGrant), args.Error(1)
}
func (m *MockGrantRepo) ListForReserve(ctx context.Context, userID int32, candidateIDs []int32) ([]domain.CreditGrant, error) {
	args := m.Called(ctx, userID, candidateIDs)
	return args.Get(0).([]domain.CreditGrant), args.Error(1)
}
func (m *MockGrantRepo) AddInUse(ctx context.Context, grantID int32, amountCents int64) error {
	args := m.Called(ctx, grantID, amountCents)
	return args.Error(0)
}
func (m *MockGrantRepo) CreateReservations(ctx context.Context, reservations []domain.GrantReservation) error {
	args := m.Called(ctx, reservations)
	return args.Error(0)
}
func (m *MockGrantRepo) ListReservations(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error) {
	args := m.Called(ctx, rentalRequestID)
	return args.Get(0).([]domain.GrantReservation), args.Error(1)
}
func (m *MockGrantRepo) ReleaseForRequest(ctx context.Context, rentalRequestID int32) ([]domain.GrantReservation, error) {
	args := m.Called(ctx, rentalRequestID)
	return args.Get(0).([]domain.GrantReservation), args.Error(1)
}
func (m *MockGrantRepo) Freeze(ctx context.Context, grantID int32) error {
	args := m.Called(ctx, grantID)
	return args.Error(0)
}
func (m *MockGrantRepo) FreezeBySource(ctx context.Context, sourceRef string) error {
	args := m.Called(ctx, sourceRef)
	return args.Error(0)
}
func (m *MockGrantRepo) SoftDeleteReleasedBySource(ctx context.Context, sourceRef string) error {
	args := m.Called(ctx, sourceRef)
	return args.Error(0)
}
func (m *MockGrantRepo) ListGiftsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.CreditGrant, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]domain.CreditGrant), args.Error(1)
}

// MockRentalRepo
type MockRentalRepo struct {
	mock.Mock
}

func (m *MockRentalRepo) Create(ctx context.Context, req *domain.RentalRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockRentalRepo) GetByID(ctx context.Context, id int32) (*domain.RentalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalRequest), args.Error(1)
}
func (m *MockRentalRepo) GetForUpdate(ctx context.Context, id int32) (*domain.RentalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalRequest), args.Error(1)
}
func (m *MockRentalRepo) Update(ctx context.Context, req *domain.RentalRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockRentalRepo) HasActiveForProduct(ctx context.Context, productID int32) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}
func (m *MockRentalRepo) ListByRequester(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	args := m.Called(ctx, requesterID, status, page, pageSize)
	return args.Get(0).([]domain.RentalRequest), args.Get(1).(int32), args.Error(2)
}
func (m *MockRentalRepo) ListByOwner(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	args := m.Called(ctx, ownerID, status, page, pageSize)
	return args.Get(0).([]domain.RentalRequest), args.Get(1).(int32), args.Error(2)
}
func (m *MockRentalRepo) ListAcceptedPastDeadline(ctx context.Context, now time.Time) ([]domain.RentalRequest, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.RentalRequest), args.Error(1)
}
func (m *MockRentalRepo) PurgeSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockProductRepo
type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockProductRepo) GetByID(ctx context.Context, id int32) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}
func (m *MockProductRepo) GetForUpdate(ctx context.Context, id int32) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}
func (m *MockProductRepo) UpdateStatus(ctx context.Context, id int32, status domain.ProductStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}
func (m *MockProductRepo) ListByOwner(ctx context.Context, ownerID int32) ([]domain.Product, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]domain.Product), args.Error(1)
}

// MockNotificationRepo
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, note *domain.Notification) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
func (m *MockNotificationRepo) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationRepo) MarkAsRead(ctx context.Context, id, userID int32) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockUserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetEmail(ctx context.Context, userID int32) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendRentalRequestNotification(ctx context.Context, ownerEmail, productName string, depositCents int64) error {
	args := m.Called(ctx, ownerEmail, productName, depositCents)
	return args.Error(0)
}
func (m *MockEmailService) SendRentalAcceptedNotification(ctx context.Context, requesterEmail, productName, handoffNote string) error {
	args := m.Called(ctx, requesterEmail, productName, handoffNote)
	return args.Error(0)
}
func (m *MockEmailService) SendRentalTerminatedNotification(ctx context.Context, requesterEmail, productName, status, reason string, refundedCents int64) error {
	args := m.Called(ctx, requesterEmail, productName, status, reason, refundedCents)
	return args.Error(0)
}
func (m *MockEmailService) SendGiftGrantNotification(ctx context.Context, email string, amountCents int64, validityDate *time.Time, reason string) error {
	args := m.Called(ctx, email, amountCents, validityDate, reason)
	return args.Error(0)
}
func (m *MockEmailService) SendGiftExpiryReminder(ctx context.Context, email string, amountCents, remainingCents int64, validityDate time.Time) error {
	args := m.Called(ctx, email, amountCents, remainingCents, validityDate)
	return args.Error(0)
}
func (m *MockEmailService) SendSubmissionDeadlineAlert(ctx context.Context, opsEmail string, requestID int32, deadline time.Time) error {
	args := m.Called(ctx, opsEmail, requestID, deadline)
	return args.Error(0)
}

// MockRentalService
type MockRentalService struct {
	mock.Mock
}

func (m *MockRentalService) CreateRentalRequest(ctx context.Context, requesterID int32, input service.CreateRentalInput) (*domain.RentalRequest, error) {
	args := m.Called(ctx, requesterID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalRequest), args.Error(1)
}
func (m *MockRentalService) TransitionRequest(ctx context.Context, requestID int32, actor domain.Actor, target domain.RentalStatus, meta service.TransitionMeta) (*domain.RentalRequest, error) {
	args := m.Called(ctx, requestID, actor, target, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalRequest), args.Error(1)
}
func (m *MockRentalService) GetRental(ctx context.Context, userID, requestID int32) (*domain.RentalRequest, error) {
	args := m.Called(ctx, userID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalRequest), args.Error(1)
}
func (m *MockRentalService) ListRentals(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	args := m.Called(ctx, requesterID, status, page, pageSize)
	return args.Get(0).([]domain.RentalRequest), args.Get(1).(int32), args.Error(2)
}
func (m *MockRentalService) ListLendings(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	args := m.Called(ctx, ownerID, status, page, pageSize)
	return args.Get(0).([]domain.RentalRequest), args.Get(1).(int32), args.Error(2)
}
