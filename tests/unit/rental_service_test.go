package unit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/service"
)

func TestRentalService_CreateRentalRequest(t *testing.T) {
	store := newFakeStore()
	noteRepo := new(MockNotificationRepo)
	emailSvc := new(MockEmailService)
	users := new(MockUserDirectory)
	svc := service.NewRentalService(store, noteRepo, emailSvc, users)

	ctx := context.Background()
	requesterID := int32(1)
	ownerID := int32(10)
	productID := int32(2)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC) // 2 days inclusive

	product := &domain.Product{
		ID:             productID,
		OwnerID:        ownerID,
		Name:           "Pressure Washer",
		PriceUnit:      domain.PriceUnitDay,
		UnitPriceCents: 1000,
		Status:         domain.ProductStatusAvailable,
	}

	t.Run("Wallet Funded", func(t *testing.T) {
		// The create transaction reads the product under a row lock.
		store.products.On("GetForUpdate", ctx, productID).Return(product, nil)
		store.rentals.On("HasActiveForProduct", ctx, productID).Return(false, nil)
		store.rentals.On("Create", ctx, mock.AnythingOfType("*domain.RentalRequest")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.RentalRequest).ID = 100
			}).Return(nil)
		store.wallets.On("Reserve", ctx, requesterID, int64(2000), int32(100)).Return(nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)

		noteRepo.On("Create", ctx, mock.AnythingOfType("*domain.Notification")).Return(nil)
		users.On("GetEmail", ctx, ownerID).Return("owner@test.com", nil)
		emailSvc.On("SendRentalRequestNotification", ctx, "owner@test.com", "Pressure Washer", int64(2000)).Return(nil)

		req, err := svc.CreateRentalRequest(ctx, requesterID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
			Plan:             service.DepositPlan{UseWallet: true},
		})
		assert.NoError(t, err)
		assert.NotNil(t, req)
		assert.Equal(t, domain.RentalStatusRequested, req.Status)
		assert.Equal(t, int32(2), req.TotalUnits)
		assert.Equal(t, int64(2000), req.DepositCents)
		assert.True(t, req.PaidWithWallet)
		assert.Equal(t, int64(2000), req.WalletReservedCents)
		assert.False(t, req.PaidWithGrants)
		store.products.AssertCalled(t, "GetForUpdate", ctx, productID)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		store.wallets.ExpectedCalls = nil
		store.wallets.On("Reserve", ctx, requesterID, int64(2000), int32(100)).
			Return(domain.ErrInsufficientFunds)

		req, err := svc.CreateRentalRequest(ctx, requesterID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
			Plan:             service.DepositPlan{UseWallet: true},
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Nil(t, req)
	})

	t.Run("Own Product", func(t *testing.T) {
		req, err := svc.CreateRentalRequest(ctx, ownerID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
			Plan:             service.DepositPlan{UseWallet: true},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Nil(t, req)
	})

	t.Run("Product Already Reserved", func(t *testing.T) {
		store.rentals.ExpectedCalls = nil
		store.rentals.On("HasActiveForProduct", ctx, productID).Return(true, nil)

		_, err := svc.CreateRentalRequest(ctx, requesterID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
			Plan:             service.DepositPlan{UseWallet: true},
		})
		assert.ErrorIs(t, err, domain.ErrProductAlreadyReserved)
	})

	t.Run("Empty Plan", func(t *testing.T) {
		_, err := svc.CreateRentalRequest(ctx, requesterID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Delivery Without Address", func(t *testing.T) {
		_, err := svc.CreateRentalRequest(ctx, requesterID, service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodDelivery,
			Plan:             service.DepositPlan{UseWallet: true},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestRentalService_CreateRentalRequest_Grants(t *testing.T) {
	ctx := context.Background()
	requesterID := int32(1)
	productID := int32(2)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC) // deposit 2000

	product := &domain.Product{
		ID:             productID,
		OwnerID:        10,
		Name:           "Pressure Washer",
		PriceUnit:      domain.PriceUnitDay,
		UnitPriceCents: 1000,
		Status:         domain.ProductStatusAvailable,
	}

	newFixture := func() (*fakeStore, service.RentalService, *MockNotificationRepo, *MockEmailService, *MockUserDirectory) {
		store := newFakeStore()
		noteRepo := new(MockNotificationRepo)
		emailSvc := new(MockEmailService)
		users := new(MockUserDirectory)
		store.products.On("GetForUpdate", ctx, productID).Return(product, nil)
		store.rentals.On("HasActiveForProduct", ctx, productID).Return(false, nil)
		store.rentals.On("Create", ctx, mock.AnythingOfType("*domain.RentalRequest")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.RentalRequest).ID = 100
			}).Return(nil)
		return store, service.NewRentalService(store, noteRepo, emailSvc, users), noteRepo, emailSvc, users
	}

	input := func(plan service.DepositPlan) service.CreateRentalInput {
		return service.CreateRentalInput{
			ProductID:        productID,
			RentalStart:      start,
			RentalEnd:        end,
			CollectionMethod: domain.CollectionMethodMeetup,
			Plan:             plan,
		}
	}

	t.Run("Grants Cover Fully", func(t *testing.T) {
		store, svc, noteRepo, emailSvc, users := newFixture()
		store.grants.On("ListForReserve", ctx, requesterID, []int32(nil)).Return([]domain.CreditGrant{
			{ID: 7, UserID: requesterID, AmountCents: 1500},
			{ID: 8, UserID: requesterID, AmountCents: 3000, InUseCents: 2000},
		}, nil)
		store.grants.On("AddInUse", ctx, int32(7), int64(1500)).Return(nil)
		store.grants.On("AddInUse", ctx, int32(8), int64(500)).Return(nil)
		store.grants.On("CreateReservations", ctx, mock.AnythingOfType("[]domain.GrantReservation")).Return(nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)
		noteRepo.On("Create", ctx, mock.AnythingOfType("*domain.Notification")).Return(nil)
		users.On("GetEmail", ctx, int32(10)).Return("owner@test.com", nil)
		emailSvc.On("SendRentalRequestNotification", ctx, "owner@test.com", "Pressure Washer", int64(2000)).Return(nil)

		req, err := svc.CreateRentalRequest(ctx, requesterID, input(service.DepositPlan{UseGrants: true}))
		assert.NoError(t, err)
		assert.True(t, req.PaidWithGrants)
		assert.False(t, req.PaidWithWallet)
		assert.Equal(t, int64(0), req.WalletReservedCents)
		store.wallets.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Grants Plus Wallet Remainder", func(t *testing.T) {
		store, svc, noteRepo, emailSvc, users := newFixture()
		store.grants.On("ListForReserve", ctx, requesterID, []int32(nil)).Return([]domain.CreditGrant{
			{ID: 7, UserID: requesterID, AmountCents: 1200},
		}, nil)
		store.grants.On("AddInUse", ctx, int32(7), int64(1200)).Return(nil)
		store.grants.On("CreateReservations", ctx, mock.AnythingOfType("[]domain.GrantReservation")).Return(nil)
		store.wallets.On("Reserve", ctx, requesterID, int64(800), int32(100)).Return(nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)
		noteRepo.On("Create", ctx, mock.AnythingOfType("*domain.Notification")).Return(nil)
		users.On("GetEmail", ctx, int32(10)).Return("owner@test.com", nil)
		emailSvc.On("SendRentalRequestNotification", ctx, "owner@test.com", "Pressure Washer", int64(2000)).Return(nil)

		req, err := svc.CreateRentalRequest(ctx, requesterID, input(service.DepositPlan{UseWallet: true, UseGrants: true}))
		assert.NoError(t, err)
		assert.True(t, req.PaidWithGrants)
		assert.True(t, req.PaidWithWallet)
		assert.Equal(t, int64(800), req.WalletReservedCents)
	})

	t.Run("Explicit Expired Candidate", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		expiry := end.Add(-time.Hour) // expires before the rental ends
		store.grants.On("ListForReserve", ctx, requesterID, []int32{7}).Return([]domain.CreditGrant{
			{ID: 7, UserID: requesterID, AmountCents: 5000, IsGiftGrant: true, ValidityDate: &expiry},
		}, nil)

		_, err := svc.CreateRentalRequest(ctx, requesterID, input(service.DepositPlan{
			UseGrants:         true,
			CandidateGrantIDs: []int32{7},
		}))
		assert.ErrorIs(t, err, domain.ErrExpiredGrant)
		store.rentals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Auto Selection Skips Expired And Classifies", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		expiry := end.Add(-time.Hour)
		// The expired gift alone would have covered the shortfall.
		store.grants.On("ListForReserve", ctx, requesterID, []int32(nil)).Return([]domain.CreditGrant{
			{ID: 7, UserID: requesterID, AmountCents: 500},
			{ID: 8, UserID: requesterID, AmountCents: 5000, IsGiftGrant: true, ValidityDate: &expiry},
		}, nil)
		store.grants.On("AddInUse", ctx, int32(7), int64(500)).Return(nil)

		_, err := svc.CreateRentalRequest(ctx, requesterID, input(service.DepositPlan{UseGrants: true}))
		assert.ErrorIs(t, err, domain.ErrExpiredGrant)
	})

	t.Run("Plain Shortfall", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.grants.On("ListForReserve", ctx, requesterID, []int32(nil)).Return([]domain.CreditGrant{
			{ID: 7, UserID: requesterID, AmountCents: 500},
		}, nil)
		store.grants.On("AddInUse", ctx, int32(7), int64(500)).Return(nil)

		_, err := svc.CreateRentalRequest(ctx, requesterID, input(service.DepositPlan{UseGrants: true}))
		assert.ErrorIs(t, err, domain.ErrInsufficientGrantBalance)
		store.rentals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRentalService_TransitionRequest(t *testing.T) {
	ctx := context.Background()
	requesterID := int32(1)
	ownerID := int32(10)
	requestID := int32(100)

	base := func(status domain.RentalStatus) *domain.RentalRequest {
		return &domain.RentalRequest{
			ID:                  requestID,
			RequesterID:         requesterID,
			OwnerID:             ownerID,
			ProductID:           2,
			Status:              status,
			PaidWithWallet:      true,
			WalletReservedCents: 2000,
			DepositCents:        2000,
		}
	}
	ownerActor := domain.Actor{UserID: ownerID, Role: domain.ActorRoleOwner}
	renterActor := domain.Actor{UserID: requesterID, Role: domain.ActorRoleRenter}

	newFixture := func() (*fakeStore, service.RentalService, *MockNotificationRepo, *MockEmailService, *MockUserDirectory) {
		store := newFakeStore()
		noteRepo := new(MockNotificationRepo)
		emailSvc := new(MockEmailService)
		users := new(MockUserDirectory)
		store.products.On("GetByID", ctx, int32(2)).
			Return(&domain.Product{ID: 2, Name: "Pressure Washer"}, nil)
		noteRepo.On("Create", ctx, mock.AnythingOfType("*domain.Notification")).Return(nil)
		return store, service.NewRentalService(store, noteRepo, emailSvc, users), noteRepo, emailSvc, users
	}

	t.Run("Owner Accepts", func(t *testing.T) {
		store, svc, _, emailSvc, users := newFixture()
		deadline := time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusRequested), nil)
		store.wallets.On("HasPendingPurchase", ctx, requestID).Return(false, nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)
		users.On("GetEmail", ctx, requesterID).Return("renter@test.com", nil)
		emailSvc.On("SendRentalAcceptedNotification", ctx, "renter@test.com", "Pressure Washer", "porch pickup").Return(nil)

		req, err := svc.TransitionRequest(ctx, requestID, ownerActor, domain.RentalStatusAccepted, service.TransitionMeta{
			HandoffNote:        "porch pickup",
			SubmissionDeadline: &deadline,
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.RentalStatusAccepted, req.Status)
		assert.Equal(t, "porch pickup", req.HandoffNote)
		assert.Equal(t, &deadline, req.SubmissionDeadline)
	})

	t.Run("Accept Blocked By Pending Purchase", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusRequested), nil)
		store.wallets.On("HasPendingPurchase", ctx, requestID).Return(true, nil)

		_, err := svc.TransitionRequest(ctx, requestID, ownerActor, domain.RentalStatusAccepted, service.TransitionMeta{})
		assert.ErrorIs(t, err, domain.ErrUnconfirmedFunding)
		store.rentals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Invalid Transition", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusCollected), nil)

		_, err := svc.TransitionRequest(ctx, requestID, ownerActor, domain.RentalStatusAccepted, service.TransitionMeta{})
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	})

	t.Run("Renter May Not Accept", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusRequested), nil)

		_, err := svc.TransitionRequest(ctx, requestID, renterActor, domain.RentalStatusAccepted, service.TransitionMeta{})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Stranger May Not Accept", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusRequested), nil)

		_, err := svc.TransitionRequest(ctx, requestID, domain.Actor{UserID: 99, Role: domain.ActorRoleOwner},
			domain.RentalStatusAccepted, service.TransitionMeta{})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Cancel Refunds Wallet And Grants", func(t *testing.T) {
		store, svc, _, emailSvc, users := newFixture()
		req := base(domain.RentalStatusRequested)
		req.PaidWithGrants = true
		req.WalletReservedCents = 1200
		store.rentals.On("GetForUpdate", ctx, requestID).Return(req, nil)
		store.wallets.On("Release", ctx, requesterID, int64(1200), requestID).Return(true, nil)
		store.grants.On("ReleaseForRequest", ctx, requestID).Return([]domain.GrantReservation{
			{RentalRequestID: requestID, GrantID: 7, ReservedCents: 800},
		}, nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)
		users.On("GetEmail", ctx, requesterID).Return("renter@test.com", nil)
		emailSvc.On("SendRentalTerminatedNotification", ctx, "renter@test.com", "Pressure Washer",
			"CANCELLED_BY_RENTER", "changed plans", int64(2000)).Return(nil)

		got, err := svc.TransitionRequest(ctx, requestID, renterActor, domain.RentalStatusCancelledByRenter,
			service.TransitionMeta{Reason: "changed plans"})
		assert.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelledByRenter, got.Status)
		assert.Equal(t, "changed plans", got.Reason)
		store.wallets.AssertExpectations(t)
		store.grants.AssertExpectations(t)
	})

	t.Run("Return To Owner Refunds Too", func(t *testing.T) {
		store, svc, _, emailSvc, users := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusReturnedByRenter), nil)
		store.wallets.On("Release", ctx, requesterID, int64(2000), requestID).Return(true, nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)
		users.On("GetEmail", ctx, requesterID).Return("renter@test.com", nil)
		emailSvc.On("SendRentalTerminatedNotification", ctx, "renter@test.com", "Pressure Washer",
			"RETURNED_TO_OWNER", "", int64(2000)).Return(nil)

		got, err := svc.TransitionRequest(ctx, requestID, ownerActor, domain.RentalStatusReturnedToOwner, service.TransitionMeta{})
		assert.NoError(t, err)
		assert.Equal(t, domain.RentalStatusReturnedToOwner, got.Status)
		store.wallets.AssertExpectations(t)
	})

	t.Run("Submit Records Dropoff", func(t *testing.T) {
		store, svc, _, _, _ := newFixture()
		store.rentals.On("GetForUpdate", ctx, requestID).Return(base(domain.RentalStatusAccepted), nil)
		store.rentals.On("Update", ctx, mock.AnythingOfType("*domain.RentalRequest")).Return(nil)

		got, err := svc.TransitionRequest(ctx, requestID, ownerActor, domain.RentalStatusSubmitted,
			service.TransitionMeta{DropoffDetail: "locker 12, code 0420"})
		assert.NoError(t, err)
		assert.Equal(t, domain.RentalStatusSubmitted, got.Status)
		assert.Equal(t, "locker 12, code 0420", got.DropoffDetail)
	})
}

func TestRentalService_GetRental(t *testing.T) {
	store := newFakeStore()
	svc := service.NewRentalService(store, new(MockNotificationRepo), new(MockEmailService), new(MockUserDirectory))
	ctx := context.Background()

	req := &domain.RentalRequest{ID: 100, RequesterID: 1, OwnerID: 10}
	store.rentals.On("GetByID", ctx, int32(100)).Return(req, nil)

	t.Run("Requester Sees It", func(t *testing.T) {
		got, err := svc.GetRental(ctx, 1, 100)
		assert.NoError(t, err)
		assert.Equal(t, req, got)
	})

	t.Run("Owner Sees It", func(t *testing.T) {
		got, err := svc.GetRental(ctx, 10, 100)
		assert.NoError(t, err)
		assert.Equal(t, req, got)
	})

	t.Run("Stranger Does Not", func(t *testing.T) {
		_, err := svc.GetRental(ctx, 99, 100)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
