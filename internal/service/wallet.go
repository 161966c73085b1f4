package service

import (
	"context"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/metrics"
	"rentloop-backend/internal/repository"
)

type walletService struct {
	store repository.Store
}

func NewWalletService(store repository.Store) WalletService {
	return &walletService{store: store}
}

func (s *walletService) GetWalletSnapshot(ctx context.Context, userID int32) (*domain.Wallet, error) {
	return s.store.Wallets().Get(ctx, userID)
}

func (s *walletService) ListEntries(ctx context.Context, userID int32, page, pageSize int32) ([]domain.WalletEntry, int32, error) {
	return s.store.Wallets().ListEntries(ctx, userID, page, pageSize)
}

func (s *walletService) Reconcile(ctx context.Context, userID int32) (int64, int64, bool, error) {
	var ledgerSum, cachedSum int64
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		w, err := r.Wallets().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := r.Wallets().SumAcceptedEntries(ctx, userID)
		if err != nil {
			return err
		}
		ledgerSum = sum
		cachedSum = w.AvailableCents + w.LockedCents
		return nil
	})
	if err != nil {
		return 0, 0, false, err
	}
	return ledgerSum, cachedSum, ledgerSum == cachedSum, nil
}

func (s *walletService) FinalizeDeposit(ctx context.Context, userID int32, amountCents int64, rentalRequestID int32) (bool, error) {
	if amountCents <= 0 {
		return false, domain.Errorf(domain.ErrInvalidArgument, "finalize amount must be positive, got %d", amountCents)
	}
	var finalized bool
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		var err error
		finalized, err = r.Wallets().Finalize(ctx, userID, amountCents, rentalRequestID)
		return err
	})
	if err != nil {
		return false, err
	}
	if finalized {
		metrics.FinalizesTotal.WithLabelValues("wallet").Inc()
	}
	return finalized, nil
}

func (s *walletService) PurchaseCredits(ctx context.Context, userID int32, amountCents int64, gatewayRef string, rentalRequestID *int32) (*domain.WalletEntry, error) {
	if amountCents <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "purchase amount must be positive, got %d", amountCents)
	}
	entry := &domain.WalletEntry{
		UserID:          userID,
		AmountCents:     amountCents,
		Direction:       domain.EntryDirectionPurchase,
		Status:          domain.EntryStatusPending,
		RentalRequestID: rentalRequestID,
		GatewayRef:      gatewayRef,
	}
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Wallets().CreditPending(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *walletService) ConfirmPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	var entry *domain.WalletEntry
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		var err error
		entry, err = r.Wallets().ConfirmPurchase(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *walletService) RejectPurchase(ctx context.Context, entryID int32) (*domain.WalletEntry, error) {
	var entry *domain.WalletEntry
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		var err error
		entry, err = r.Wallets().RejectPurchase(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *walletService) RequestWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	if amountCents <= 0 {
		return domain.Errorf(domain.ErrInvalidArgument, "withdrawal amount must be positive, got %d", amountCents)
	}
	return s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Wallets().RequestWithdrawal(ctx, userID, amountCents, gatewayRef)
	})
}

func (s *walletService) ConfirmWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	return s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Wallets().ConfirmWithdrawal(ctx, userID, amountCents, gatewayRef)
	})
}

func (s *walletService) RejectWithdrawal(ctx context.Context, userID int32, amountCents int64, gatewayRef string) error {
	return s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Wallets().RejectWithdrawal(ctx, userID, amountCents, gatewayRef)
	})
}
