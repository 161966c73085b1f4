package service

import (
	"context"

	"rentloop-backend/internal/domain"
)

// adminService is a thin privileged front over the rental service's
// transition engine. It never moves money itself; delegating keeps the
// refund sequence identical on both call paths.
type adminService struct {
	rentalSvc RentalService
}

func NewAdminService(rentalSvc RentalService) AdminService {
	return &adminService{rentalSvc: rentalSvc}
}

func (s *adminService) PlatformReject(ctx context.Context, adminID, requestID int32, reason string) (*domain.RentalRequest, error) {
	actor := domain.Actor{UserID: adminID, Role: domain.ActorRolePlatform}
	return s.rentalSvc.TransitionRequest(ctx, requestID, actor, domain.RentalStatusRejectedByPlatform, TransitionMeta{Reason: reason})
}

// forceableStatuses are the operational-correction targets an admin may
// force directly. Terminal refund targets go through PlatformReject.
var forceableStatuses = map[domain.RentalStatus]bool{
	domain.RentalStatusSubmitted:        true,
	domain.RentalStatusCollected:        true,
	domain.RentalStatusReturnedByRenter: true,
	domain.RentalStatusReturnedToOwner:  true,
}

func (s *adminService) ForceStatus(ctx context.Context, adminID, requestID int32, target domain.RentalStatus) (*domain.RentalRequest, error) {
	if !forceableStatuses[target] {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "status %s cannot be forced", target)
	}
	actor := domain.Actor{UserID: adminID, Role: domain.ActorRolePlatform}
	return s.rentalSvc.TransitionRequest(ctx, requestID, actor, target, TransitionMeta{})
}

func (s *adminService) BulkForceStatus(ctx context.Context, adminID int32, requestIDs []int32, target domain.RentalStatus) []ForceResult {
	results := make([]ForceResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		req, err := s.ForceStatus(ctx, adminID, id, target)
		results = append(results, ForceResult{RequestID: id, Request: req, Err: err})
	}
	return results
}
