package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &emailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *emailService) send(to, subject, plainText string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func dollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func (s *emailService) SendRentalRequestNotification(ctx context.Context, ownerEmail, productName string, depositCents int64) error {
	subject := fmt.Sprintf("New rental request for %s", productName)
	body := fmt.Sprintf("Your %s has a new rental request. A deposit of %s is held while you decide.\n\nBest regards,\nThe Rentloop Team",
		productName, dollars(depositCents))
	return s.send(ownerEmail, subject, body)
}

func (s *emailService) SendRentalAcceptedNotification(ctx context.Context, requesterEmail, productName, handoffNote string) error {
	subject := fmt.Sprintf("Your rental request for %s was accepted", productName)
	body := fmt.Sprintf("The owner accepted your request for %s.", productName)
	if handoffNote != "" {
		body += fmt.Sprintf("\n\nHandoff note from the owner: %s", handoffNote)
	}
	body += "\n\nBest regards,\nThe Rentloop Team"
	return s.send(requesterEmail, subject, body)
}

func (s *emailService) SendRentalTerminatedNotification(ctx context.Context, requesterEmail, productName, status, reason string, refundedCents int64) error {
	subject := fmt.Sprintf("Your rental of %s is settled", productName)
	body := fmt.Sprintf("Your rental request for %s ended with status %s.", productName, status)
	if reason != "" {
		body += fmt.Sprintf("\n\nReason: %s", reason)
	}
	body += fmt.Sprintf("\n\n%s of your deposit was returned to your account.\n\nBest regards,\nThe Rentloop Team", dollars(refundedCents))
	return s.send(requesterEmail, subject, body)
}

func (s *emailService) SendGiftGrantNotification(ctx context.Context, email string, amountCents int64, validityDate *time.Time, reason string) error {
	subject := "You received rental credits"
	body := fmt.Sprintf("You received %s in rental credits: %s.", dollars(amountCents), reason)
	if validityDate != nil {
		body += fmt.Sprintf("\n\nThese credits are valid until %s.", validityDate.Format("January 2, 2006"))
	}
	body += "\n\nBest regards,\nThe Rentloop Team"
	return s.send(email, subject, body)
}

func (s *emailService) SendGiftExpiryReminder(ctx context.Context, email string, amountCents, remainingCents int64, validityDate time.Time) error {
	subject := "Your rental credits expire soon"
	body := fmt.Sprintf("You still have %s of your %s credit gift left. It expires on %s.\n\nBest regards,\nThe Rentloop Team",
		dollars(remainingCents), dollars(amountCents), validityDate.Format("January 2, 2006"))
	return s.send(email, subject, body)
}

func (s *emailService) SendSubmissionDeadlineAlert(ctx context.Context, opsEmail string, requestID int32, deadline time.Time) error {
	subject := fmt.Sprintf("Rental request %d missed its submission deadline", requestID)
	body := fmt.Sprintf("Rental request %d was accepted but the item was not submitted by %s. Please follow up with the owner.",
		requestID, deadline.Format(time.RFC1123))
	return s.send(opsEmail, subject, body)
}
