package jobs

import (
	"context"
	"time"

	"rentloop-backend/internal/logger"
)

// SendSubmissionDeadlineAlerts emails operators about accepted requests
// whose item was not submitted by the deadline. The deadline is a signal
// for humans; nothing transitions automatically when it passes.
func (jr *JobRunner) SendSubmissionDeadlineAlerts() {
	jr.runWithRecovery("SendSubmissionDeadlineAlerts", func() {
		ctx := context.Background()

		overdue, err := jr.store.Rentals().ListAcceptedPastDeadline(ctx, time.Now())
		if err != nil {
			logger.Error("Failed to list requests past submission deadline", "error", err)
			return
		}

		alerted := 0
		for _, req := range overdue {
			if req.SubmissionDeadline == nil {
				continue
			}
			err := jr.services.Email.SendSubmissionDeadlineAlert(ctx, jr.config.Email.OpsEmail, req.ID, *req.SubmissionDeadline)
			if err != nil {
				logger.Error("Failed to send submission deadline alert",
					"rental_request_id", req.ID, "error", err)
				continue
			}
			alerted++
		}

		logger.Info("Sent submission deadline alerts", "overdue", len(overdue), "alerted", alerted)
	})
}

// PurgeSettledRequests hard-deletes terminal requests older than the
// retention window. Requests with any outstanding reservation are never
// touched, whatever their age.
func (jr *JobRunner) PurgeSettledRequests() {
	jr.runWithRecovery("PurgeSettledRequests", func() {
		ctx := context.Background()

		cutoff := time.Now().AddDate(0, 0, -jr.config.Retention.SettledRequestDays)
		purged, err := jr.store.Rentals().PurgeSettledBefore(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to purge settled requests", "error", err)
			return
		}

		logger.Info("Purged settled rental requests", "count", purged, "cutoff", cutoff.Format("2006-01-02"))
	})
}
