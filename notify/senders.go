package notify

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

// LogSender writes each message to a logger instead of delivering it.
type LogSender struct {
	Logger *log.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, htmlBody string) bool {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("goIdentity: mail to=%q subject=%q bytes=%d", to, subject, len(htmlBody))
	return true
}

// SMTPConfig configures SMTPSender. Username empty disables authentication.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("notify: smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, send: smtp.SendMail, now: time.Now}, nil
}

// Send delivers one message. Header injection through to or subject is refused.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) bool {
	if s == nil || strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") || strings.TrimSpace(to) == "" {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, s.buildMessage(to, subject, htmlBody)); err != nil {
		log.Printf("goIdentity: smtp delivery to %q failed: %v", to, err)
		return false
	}
	return true
}

func (s *SMTPSender) buildMessage(to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + s.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
