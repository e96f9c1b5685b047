package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"proptools/internal/config"
	"proptools/web"
)

// ErrMailDisabled is returned when no SMTP host is configured.
var ErrMailDisabled = errors.New("mail service disabled")

// Mailer sends transactional email.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, link string, expiresIn time.Duration) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type MailService struct {
	cfg      config.SMTPConfig
	verify   *template.Template
	sendMail sendFunc
}

func NewMailService(cfg config.SMTPConfig) (*MailService, error) {
	tmpl, err := template.ParseFS(web.Templates(), "email/verify.html")
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	if !cfg.Enabled() {
		slog.Warn("mail service disabled: SMTP_HOST is not set")
	}
	return &MailService{cfg: cfg, verify: tmpl, sendMail: smtp.SendMail}, nil
}

func (s *MailService) Enabled() bool {
	return s.cfg.Enabled()
}

// SendVerificationEmail 同步发送，错误交给调用方记录
func (s *MailService) SendVerificationEmail(ctx context.Context, to, username, link string, expiresIn time.Duration) error {
	if !s.Enabled() {
		// 本地开发时直接把链接打到日志里
		slog.InfoContext(ctx, "verification link (mail disabled)", "to", to, "link", link)
		return ErrMailDisabled
	}
	var buf bytes.Buffer
	err := s.verify.Execute(&buf, map[string]string{
		"Username":  username,
		"Link":      link,
		"ExpiresIn": expiresIn.String(),
	})
	if err != nil {
		return fmt.Errorf("render verify email: %w", err)
	}
	return s.send(ctx, []string{to}, "Verify your PropTools email", buf.String())
}

func (s *MailService) send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	addr := s.cfg.Host + ":" + s.cfg.Port

	msg := []byte("To: " + strings.Join(to, ",") + "\r\n" +
		"From: PropTools <" + s.cfg.From + ">\r\n" +
		"Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" + body)

	if err := s.sendMail(addr, auth, s.cfg.From, to, msg); err != nil {
		return fmt.Errorf("send mail to %v: %w", to, err)
	}
	slog.InfoContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}
