package service

import (
	"context"
	"fmt"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/logger"
	"rentloop-backend/internal/metrics"
	"rentloop-backend/internal/repository"
	"rentloop-backend/internal/utils"
)

type rentalService struct {
	store    repository.Store
	noteRepo repository.NotificationRepository
	emailSvc EmailService
	users    UserDirectory
}

func NewRentalService(
	store repository.Store,
	noteRepo repository.NotificationRepository,
	emailSvc EmailService,
	users UserDirectory,
) RentalService {
	return &rentalService{
		store:    store,
		noteRepo: noteRepo,
		emailSvc: emailSvc,
		users:    users,
	}
}

func (s *rentalService) CreateRentalRequest(ctx context.Context, requesterID int32, input CreateRentalInput) (*domain.RentalRequest, error) {
	if !input.Plan.UseWallet && !input.Plan.UseGrants {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "deposit plan enables neither wallet nor grants")
	}
	switch input.CollectionMethod {
	case domain.CollectionMethodMeetup:
	case domain.CollectionMethodDelivery:
		if input.DeliveryAddress == "" {
			return nil, domain.Errorf(domain.ErrInvalidArgument, "delivery collection requires an address")
		}
	default:
		return nil, domain.Errorf(domain.ErrInvalidArgument, "unknown collection method %q", input.CollectionMethod)
	}

	var (
		req     *domain.RentalRequest
		product *domain.Product
	)
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		// Lock the product row so two concurrent creates serialize; the
		// second one then sees the first request in HasActiveForProduct.
		var err error
		product, err = r.Products().GetForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if product.Status != domain.ProductStatusAvailable {
			return domain.Errorf(domain.ErrInvalidArgument, "product %d is %s", product.ID, product.Status)
		}
		if product.OwnerID == requesterID {
			return domain.Errorf(domain.ErrInvalidArgument, "cannot rent your own product")
		}
		active, err := r.Rentals().HasActiveForProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if active {
			return domain.Errorf(domain.ErrProductAlreadyReserved, "product %d has an open rental request", input.ProductID)
		}

		breakdown, err := utils.CalculateDeposit(input.RentalStart, input.RentalEnd, product, input.Plan.DiscountCents)
		if err != nil {
			return domain.Errorf(domain.ErrInvalidArgument, "%v", err)
		}

		req = &domain.RentalRequest{
			RequesterID:      requesterID,
			OwnerID:          product.OwnerID,
			ProductID:        product.ID,
			Status:           domain.RentalStatusRequested,
			RentalStart:      input.RentalStart,
			RentalEnd:        input.RentalEnd,
			TotalUnits:       breakdown.TotalUnits,
			UnitPriceCents:   breakdown.UnitPriceCents,
			DepositCents:     breakdown.DepositCents,
			CollectionMethod: input.CollectionMethod,
			DeliveryAddress:  input.DeliveryAddress,
		}
		if err := r.Rentals().Create(ctx, req); err != nil {
			return err
		}

		// Grants first, wallet backs the remainder. Either step failing
		// rolls back the whole creation, the inserted row included.
		var grantCents int64
		if input.Plan.UseGrants {
			var reservations []domain.GrantReservation
			reservations, grantCents, err = reserveGrants(ctx, r, requesterID, breakdown.DepositCents,
				input.Plan.CandidateGrantIDs, input.RentalEnd, req.ID, input.Plan.UseWallet)
			if err != nil {
				return err
			}
			req.PaidWithGrants = len(reservations) > 0
		}

		walletCents := breakdown.DepositCents - grantCents
		if walletCents > 0 {
			if !input.Plan.UseWallet {
				return domain.Errorf(domain.ErrInsufficientGrantBalance,
					"grants cover %d of %d cents required", grantCents, breakdown.DepositCents)
			}
			if err := r.Wallets().Reserve(ctx, requesterID, walletCents, req.ID); err != nil {
				return err
			}
			metrics.ReservationsTotal.WithLabelValues("wallet").Inc()
			req.PaidWithWallet = true
			req.WalletReservedCents = walletCents
		}

		return r.Rentals().Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	note := &domain.Notification{
		UserID:  req.OwnerID,
		Title:   "New rental request",
		Message: fmt.Sprintf("Your %s was requested for %d units", product.Name, req.TotalUnits),
		Link:    fmt.Sprintf("/rentals/%d", req.ID),
	}
	logger.SideEffect("notification", s.noteRepo.Create(ctx, note), "rental_request_id", req.ID)
	if email, err := s.users.GetEmail(ctx, req.OwnerID); err != nil {
		logger.SideEffect("email", err, "user_id", req.OwnerID)
	} else {
		logger.SideEffect("email",
			s.emailSvc.SendRentalRequestNotification(ctx, email, product.Name, req.DepositCents),
			"rental_request_id", req.ID)
	}

	return req, nil
}

func (s *rentalService) TransitionRequest(ctx context.Context, requestID int32, actor domain.Actor, target domain.RentalStatus, meta TransitionMeta) (*domain.RentalRequest, error) {
	var (
		req           *domain.RentalRequest
		refundedCents int64
	)
	err := s.store.WithinTx(ctx, func(r repository.Registry) error {
		var err error
		req, err = r.Rentals().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !domain.ValidTransition(req.Status, target) {
			return domain.Errorf(domain.ErrInvalidStateTransition,
				"request %d cannot move from %s to %s", requestID, req.Status, target)
		}
		if err := authorizeTransition(actor, req, target); err != nil {
			return err
		}

		switch target {
		case domain.RentalStatusAccepted:
			if req.PaidWithWallet {
				pending, err := r.Wallets().HasPendingPurchase(ctx, requestID)
				if err != nil {
					return err
				}
				if pending {
					return domain.Errorf(domain.ErrUnconfirmedFunding,
						"request %d has an unconfirmed purchase backing its deposit", requestID)
				}
			}
			req.HandoffNote = meta.HandoffNote
			req.SubmissionDeadline = meta.SubmissionDeadline
		case domain.RentalStatusSubmitted:
			req.DropoffDetail = meta.DropoffDetail
		}

		if target.IsTerminal() {
			if meta.Reason != "" {
				req.Reason = meta.Reason
			}
			refundedCents, err = refundReservations(ctx, r, req)
			if err != nil {
				return err
			}
		}

		req.Status = target
		return r.Rentals().Update(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
	s.notifyTransition(ctx, req, target, refundedCents)
	return req, nil
}

// authorizeTransition checks the actor may drive the target transition.
// Platform actors may drive any transition platform overrides need.
func authorizeTransition(actor domain.Actor, req *domain.RentalRequest, target domain.RentalStatus) error {
	isOwner := actor.Role == domain.ActorRoleOwner && actor.UserID == req.OwnerID
	isRenter := actor.Role == domain.ActorRoleRenter && actor.UserID == req.RequesterID
	isPlatform := actor.Role == domain.ActorRolePlatform

	allowed := false
	switch target {
	case domain.RentalStatusAccepted, domain.RentalStatusRejectedByOwner:
		allowed = isOwner
	case domain.RentalStatusCancelledByRenter:
		allowed = isRenter
	case domain.RentalStatusSubmitted, domain.RentalStatusCollected, domain.RentalStatusReturnedToOwner:
		allowed = isOwner || isPlatform
	case domain.RentalStatusReturnedByRenter:
		allowed = isRenter || isPlatform
	case domain.RentalStatusRejectedByPlatform:
		allowed = isPlatform
	}
	if !allowed {
		return domain.Errorf(domain.ErrUnauthorized,
			"%s %d may not move request %d to %s", actor.Role, actor.UserID, req.ID, target)
	}
	return nil
}

// refundReservations is the single refund sequence every terminal
// transition runs, regardless of which actor drives it: wallet release
// first, then every outstanding grant reservation. Both halves are
// idempotent, so replaying a terminal transition never double-credits.
func refundReservations(ctx context.Context, r repository.Registry, req *domain.RentalRequest) (int64, error) {
	var refunded int64

	if req.PaidWithWallet && req.WalletReservedCents > 0 {
		released, err := r.Wallets().Release(ctx, req.RequesterID, req.WalletReservedCents, req.ID)
		if err != nil {
			return 0, err
		}
		if released {
			refunded += req.WalletReservedCents
			metrics.ReleasesTotal.WithLabelValues("wallet").Inc()
		}
	}

	if req.PaidWithGrants {
		released, err := r.Grants().ReleaseForRequest(ctx, req.ID)
		if err != nil {
			return 0, err
		}
		for _, res := range released {
			refunded += res.ReservedCents
		}
		if len(released) > 0 {
			metrics.ReleasesTotal.WithLabelValues("grant").Inc()
		}
	}

	return refunded, nil
}

func (s *rentalService) notifyTransition(ctx context.Context, req *domain.RentalRequest, target domain.RentalStatus, refundedCents int64) {
	productName := fmt.Sprintf("product %d", req.ProductID)
	if p, err := s.store.Products().GetByID(ctx, req.ProductID); err == nil {
		productName = p.Name
	}

	note := &domain.Notification{
		UserID: req.RequesterID,
		Title:  "Rental request updated",
		Link:   fmt.Sprintf("/rentals/%d", req.ID),
	}
	switch {
	case target == domain.RentalStatusAccepted:
		note.Title = "Rental request accepted"
		note.Message = fmt.Sprintf("Your request for %s was accepted", productName)
	case target.IsTerminal():
		note.Title = "Rental request settled"
		note.Message = fmt.Sprintf("Your request for %s is now %s; %d cents of deposit were returned", productName, target, refundedCents)
	default:
		note.Message = fmt.Sprintf("Your request for %s is now %s", productName, target)
	}
	logger.SideEffect("notification", s.noteRepo.Create(ctx, note), "rental_request_id", req.ID)

	if target != domain.RentalStatusAccepted && !target.IsTerminal() {
		return
	}
	email, err := s.users.GetEmail(ctx, req.RequesterID)
	if err != nil {
		logger.SideEffect("email", err, "user_id", req.RequesterID)
		return
	}
	if target == domain.RentalStatusAccepted {
		logger.SideEffect("email",
			s.emailSvc.SendRentalAcceptedNotification(ctx, email, productName, req.HandoffNote),
			"rental_request_id", req.ID)
		return
	}
	logger.SideEffect("email",
		s.emailSvc.SendRentalTerminatedNotification(ctx, email, productName, string(target), req.Reason, refundedCents),
		"rental_request_id", req.ID)
}

func (s *rentalService) GetRental(ctx context.Context, userID, requestID int32) (*domain.RentalRequest, error) {
	req, err := s.store.Rentals().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != userID && req.OwnerID != userID {
		return nil, domain.Errorf(domain.ErrUnauthorized, "user %d is not a party to request %d", userID, requestID)
	}
	return req, nil
}

func (s *rentalService) ListRentals(ctx context.Context, requesterID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	return s.store.Rentals().ListByRequester(ctx, requesterID, status, page, pageSize)
}

func (s *rentalService) ListLendings(ctx context.Context, ownerID int32, status string, page, pageSize int32) ([]domain.RentalRequest, int32, error) {
	return s.store.Rentals().ListByOwner(ctx, ownerID, status, page, pageSize)
}
