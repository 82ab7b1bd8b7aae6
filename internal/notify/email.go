package notify

import (
	"fmt"
	"net/smtp"
)

// EmailClient sends passenger email over SMTP.
type EmailClient struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	fromName  string
}

// NewEmailClient creates a new SMTP email client
func NewEmailClient(host, port, username, password, fromEmail, fromName string) *EmailClient {
	return &EmailClient{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// Send delivers a plain text email.
func (e *EmailClient) Send(to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, body))

	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.fromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
