package service

import (
	"context"
	"fmt"
	"time"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/logger"
	"rentloop-backend/internal/metrics"
	"rentloop-backend/internal/repository"
)

type grantService struct {
	store    repository.Store
	noteRepo repository.NotificationRepository
	emailSvc EmailService
	users    UserDirectory
}

func NewGrantService(
	store repository.Store,
	noteRepo repository.NotificationRepository,
	emailSvc EmailService,
	users UserDirectory,
) GrantService {
	return &grantService{
		store:    store,
		noteRepo: noteRepo,
		emailSvc: emailSvc,
		users:    users,
	}
}

func (s *grantService) GetGrantSnapshot(ctx context.Context, userID int32) ([]domain.CreditGrant, error) {
	return s.store.Grants().ListByUser(ctx, userID)
}

func (s *grantService) IssueGift(ctx context.Context, userID int32, amountCents int64, validityDays *int32, reason string) (*domain.CreditGrant, error) {
	if amountCents <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "gift amount must be positive, got %d", amountCents)
	}

	grant := &domain.CreditGrant{
		UserID:      userID,
		AmountCents: amountCents,
		SourceRef:   fmt.Sprintf("gift:%s", reason),
		IsGiftGrant: true,
	}
	if validityDays != nil {
		validity := time.Now().AddDate(0, 0, int(*validityDays))
		grant.ValidityDate = &validity
	}

	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Grants().Create(ctx, grant)
	})
	if err != nil {
		return nil, err
	}

	// Side effects run after commit and never fail the grant.
	note := &domain.Notification{
		UserID:  userID,
		Title:   "Credit gift received",
		Message: fmt.Sprintf("You received a credit gift of %d cents: %s", amountCents, reason),
		Link:    fmt.Sprintf("/grants/%d", grant.ID),
	}
	logger.SideEffect("notification", s.noteRepo.Create(ctx, note), "user_id", userID)

	if email, err := s.users.GetEmail(ctx, userID); err != nil {
		logger.SideEffect("email", err, "user_id", userID)
	} else {
		logger.SideEffect("email",
			s.emailSvc.SendGiftGrantNotification(ctx, email, amountCents, grant.ValidityDate, reason),
			"user_id", userID)
	}

	return grant, nil
}

func (s *grantService) Freeze(ctx context.Context, grantID int32) error {
	return s.store.WithinTx(ctx, func(r repository.Registry) error {
		return r.Grants().Freeze(ctx, grantID)
	})
}

func (s *grantService) RetireProduct(ctx context.Context, ownerID, productID int32, creditCents int64) (*domain.CreditGrant, error) {
	if creditCents <= 0 {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "credit amount must be positive, got %d", creditCents)
	}

	grant := &domain.CreditGrant{
		UserID:      ownerID,
		AmountCents: creditCents,
		SourceRef:   productSourceRef(productID),
	}
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		product, err := r.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.OwnerID != ownerID {
			return domain.Errorf(domain.ErrUnauthorized, "product %d is not owned by user %d", productID, ownerID)
		}
		if product.Status != domain.ProductStatusAvailable {
			return domain.Errorf(domain.ErrInvalidArgument, "product %d is already %s", productID, product.Status)
		}
		active, err := r.Rentals().HasActiveForProduct(ctx, productID)
		if err != nil {
			return err
		}
		if active {
			return domain.Errorf(domain.ErrProductAlreadyReserved, "product %d has an open rental request", productID)
		}
		if err := r.Products().UpdateStatus(ctx, productID, domain.ProductStatusRetired); err != nil {
			return err
		}
		return r.Grants().Create(ctx, grant)
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *grantService) RemoveProduct(ctx context.Context, ownerID, productID int32) error {
	return s.store.WithinTx(ctx, func(r repository.Registry) error {
		product, err := r.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.OwnerID != ownerID {
			return domain.Errorf(domain.ErrUnauthorized, "product %d is not owned by user %d", productID, ownerID)
		}
		if product.Status == domain.ProductStatusRemoved {
			return nil
		}
		if err := r.Products().UpdateStatus(ctx, productID, domain.ProductStatusRemoved); err != nil {
			return err
		}
		// Outstanding reservations stay valid until released; the grants
		// just stop accepting new reservations.
		sourceRef := productSourceRef(productID)
		if err := r.Grants().FreezeBySource(ctx, sourceRef); err != nil {
			return err
		}
		return r.Grants().SoftDeleteReleasedBySource(ctx, sourceRef)
	})
}

func productSourceRef(productID int32) string {
	return fmt.Sprintf("product:%d", productID)
}

// reserveGrants greedily consumes free grant capacity until requiredCents
// is met, inside the caller's transaction. Gift grants expiring before the
// rental's end instant are never taken: an explicitly named expired
// candidate fails the whole reservation, while auto-selection skips them
// and classifies the failure afterwards: ExpiredGrant when the skipped
// capacity would have covered the shortfall, InsufficientGrantBalance
// otherwise. With allowPartial the caller covers any shortfall elsewhere.
func reserveGrants(
	ctx context.Context,
	r repository.Registry,
	userID int32,
	requiredCents int64,
	candidateIDs []int32,
	rentalEnd time.Time,
	rentalRequestID int32,
	allowPartial bool,
) ([]domain.GrantReservation, int64, error) {
	if requiredCents <= 0 {
		return nil, 0, nil
	}

	grants, err := r.Grants().ListForReserve(ctx, userID, candidateIDs)
	if err != nil {
		return nil, 0, err
	}

	var (
		reservations   []domain.GrantReservation
		reservedCents  int64
		skippedExpired int64
	)
	remaining := requiredCents

	for i := range grants {
		if remaining == 0 {
			break
		}
		g := &grants[i]
		if !g.UsableAt(rentalEnd) {
			if len(candidateIDs) > 0 {
				return nil, 0, domain.Errorf(domain.ErrExpiredGrant,
					"grant %d expires %s, before the rental ends", g.ID, g.ValidityDate.Format("2006-01-02"))
			}
			skippedExpired += g.FreeCents()
			continue
		}

		take := g.FreeCents()
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		if err := r.Grants().AddInUse(ctx, g.ID, take); err != nil {
			return nil, 0, err
		}
		reservations = append(reservations, domain.GrantReservation{
			RentalRequestID: rentalRequestID,
			GrantID:         g.ID,
			ReservedCents:   take,
		})
		reservedCents += take
		remaining -= take
	}

	if remaining > 0 && !allowPartial {
		if skippedExpired >= remaining {
			return nil, 0, domain.Errorf(domain.ErrExpiredGrant,
				"only expired gift grants could cover the remaining %d cents", remaining)
		}
		return nil, 0, domain.Errorf(domain.ErrInsufficientGrantBalance,
			"grants cover %d of %d cents required", reservedCents, requiredCents)
	}

	if len(reservations) > 0 {
		if err := r.Grants().CreateReservations(ctx, reservations); err != nil {
			return nil, 0, err
		}
		metrics.ReservationsTotal.WithLabelValues("grant").Inc()
	}
	return reservations, reservedCents, nil
}
