package email

import (
	"fmt"
	"net/smtp"

	"github.com/atelierco/storefront/config"
)

// Mailer sends transactional mail over smtp. Message bodies stay plain;
// rendered templates belong to the front-of-house system.
type Mailer struct {
	from string
	auth smtp.Auth
	addr string
}

func New(cfg config.Email) *Mailer {
	return &Mailer{
		from: cfg.Address,
		auth: smtp.PlainAuth("", cfg.Address, cfg.Password, cfg.Host),
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

func (m *Mailer) OrderConfirmation(to, reference string, total int64) error {
	subject := fmt.Sprintf("Order %s confirmed", reference)
	body := fmt.Sprintf(
		"Thanks for your order!\r\n\r\nReference: %s\r\nTotal: %d.%02d\r\n\r\nWe'll email you again once it ships.\r\n",
		reference, total/100, total%100,
	)
	return m.send(to, subject, body)
}

func (m *Mailer) BookingConfirmation(to, title string, amount int64) error {
	subject := fmt.Sprintf("Your spot in %q is confirmed", title)
	body := fmt.Sprintf(
		"See you there!\r\n\r\nWorkshop: %s\r\nPaid: %d.%02d\r\n",
		title, amount/100, amount%100,
	)
	return m.send(to, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
