package notify

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer delivers reports and export files to the configured recipient over
// SMTP with STARTTLS. When the SMTP settings are empty it is disabled and
// every send is a logged no-op.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
	to       string
}

func NewMailer(host string, port int, from, password, to string) *Mailer {
	return &Mailer{host: host, port: port, from: from, password: password, to: to}
}

// Enabled reports whether the mailer has a usable configuration.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != "" && m.from != "" && m.to != ""
}

// SendReport sends a plain-text message.
func (m *Mailer) SendReport(subject, body string) error {
	return m.send(subject, body, "")
}

// SendFile sends a message with one file attached.
func (m *Mailer) SendFile(subject, body, path string) error {
	return m.send(subject, body, path)
}

func (m *Mailer) send(subject, body, attachment string) error {
	if !m.Enabled() {
		logrus.Infof("mailer disabled, skipping %q", subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if attachment != "" {
		msg.Attach(attachment)
	}

	d := gomail.NewDialer(m.host, m.port, m.from, m.password)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", m.to, err)
	}
	logrus.Infof("sent %q to %s", subject, m.to)
	return nil
}
