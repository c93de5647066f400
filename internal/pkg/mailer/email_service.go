// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"html"
	"time"

	"gopkg.in/gomail.v2"
)

// IntegrityAlert describes a broken audit chain.
type IntegrityAlert struct {
	FirstBadSequence uint64
	Checked          uint64
	Reason           string
	DetectedAt       time.Time
}

type IEmailService interface {
	SendIntegrityAlert(to []string, alert IntegrityAlert) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (s *emailService) SendIntegrityAlert(to []string, alert IntegrityAlert) error {
	if len(to) == 0 {
		return fmt.Errorf("mailer: no recipients for integrity alert")
	}
	m := buildIntegrityAlert(s.senderEmail, s.senderName, to, alert)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send integrity alert: %v\n", err)
		return err
	}

	fmt.Printf("[MAILER] Integrity alert sent to %d recipients\n", len(to))
	return nil
}

func buildIntegrityAlert(from, name string, to []string, alert IntegrityAlert) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, name)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", fmt.Sprintf("[AUDIT] Ledger integrity violation at sequence %d", alert.FirstBadSequence))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2 style="color: #C62828;">Audit ledger integrity violation</h2>
			<p>Verification found the first divergent entry at sequence <b>%d</b>.</p>
			<p>Reason: %s</p>
			<p>Entries verified before the break: %d</p>
			<p>Detected at %s.</p>
			<p>No entry has been repaired. Preserve the ledger storage before investigating.</p>
		</div>
	`, alert.FirstBadSequence, html.EscapeString(alert.Reason), alert.Checked, alert.DetectedAt.UTC().Format(time.RFC3339))

	m.SetBody("text/html", body)
	return m
}
