package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/JavierUzcategui/AulaPago/app/models"
	"github.com/JavierUzcategui/AulaPago/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendPaymentReviewed notifies a user that their manual payment was reviewed.
// Callers fire this best-effort; a mail failure never rolls back the review.
func SendPaymentReviewed(user *models.User, payment *models.ManualPayment, plan *models.PlanType) error {
	if user == nil || user.Email == "" {
		return nil
	}

	planName := "tu plan"
	if plan != nil {
		planName = plan.Name
	}

	var subject, body string
	switch payment.Status {
	case models.ManualPaymentApproved:
		subject = "Tu pago fue aprobado"
		body = fmt.Sprintf(
			"<p>Hola %s,</p><p>Tu pago (referencia <strong>%s</strong>) fue aprobado y %s ya está activo.</p>",
			user.Name, payment.Reference, planName,
		)
	case models.ManualPaymentRejected:
		subject = "Tu pago fue rechazado"
		body = fmt.Sprintf(
			"<p>Hola %s,</p><p>Tu pago (referencia <strong>%s</strong>) fue rechazado. Verifica los datos de la transferencia y vuelve a intentarlo.</p>",
			user.Name, payment.Reference,
		)
	default:
		return nil
	}

	return SendMail(user.Email, subject, body)
}
