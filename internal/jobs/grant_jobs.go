package jobs

import (
	"context"
	"time"

	"rentloop-backend/internal/logger"
)

// SendGiftExpiryReminders emails holders of gift grants that still have
// unused capacity and expire within the reminder window.
func (jr *JobRunner) SendGiftExpiryReminders() {
	jr.runWithRecovery("SendGiftExpiryReminders", func() {
		ctx := context.Background()

		cutoff := time.Now().AddDate(0, 0, jr.config.Retention.GiftExpiryReminderDays)
		expiring, err := jr.store.Grants().ListGiftsExpiringBefore(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to list expiring gift grants", "error", err)
			return
		}

		reminded := 0
		for _, grant := range expiring {
			if grant.FreeCents() <= 0 || grant.ValidityDate == nil {
				continue
			}
			email, err := jr.store.GetEmail(ctx, grant.UserID)
			if err != nil {
				logger.Error("Failed to resolve grant holder email",
					"grant_id", grant.ID, "user_id", grant.UserID, "error", err)
				continue
			}
			err = jr.services.Email.SendGiftExpiryReminder(ctx, email, grant.AmountCents, grant.FreeCents(), *grant.ValidityDate)
			if err != nil {
				logger.Error("Failed to send gift expiry reminder", "grant_id", grant.ID, "error", err)
				continue
			}
			reminded++
		}

		logger.Info("Sent gift expiry reminders", "expiring", len(expiring), "reminded", reminded)
	})
}
