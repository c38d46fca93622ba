package services

import (
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"os"
	"strings"
)

// EmailService handles sending emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	appURL   string
	logger   *slog.Logger
}

// NewEmailService creates a new email service instance. appURL is the public
// base used in verification links.
func NewEmailService(appURL string, logger *slog.Logger) *EmailService {
	port := 587
	if p := os.Getenv("SMTP_PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EmailService{
		host:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		port:     port,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     getEnvOrDefault("SMTP_FROM", "noreply@courses.local"),
		appURL:   strings.TrimRight(appURL, "/"),
		logger:   logger,
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// VerificationLink builds the account confirmation URL for token
func (e *EmailService) VerificationLink(token string) string {
	return fmt.Sprintf("%s/api/v1/auth/verify/%s", e.appURL, token)
}

// SendVerificationEmail sends the account confirmation link
func (e *EmailService) SendVerificationEmail(toEmail, token string) error {
	link := e.VerificationLink(token)
	if !e.IsConfigured() {
		e.logger.Warn("smtp not configured, verification email skipped", "email", toEmail, "link", link)
		return fmt.Errorf("SMTP not configured")
	}

	body := fmt.Sprintf(`<p>Здравствуйте!</p>
<p>Для подтверждения регистрации перейдите по ссылке:</p>
<p><a href="%[1]s">%[1]s</a></p>`, html.EscapeString(link))

	return e.sendEmail(toEmail, "Подтверждение регистрации", body)
}

// SendCourseUpdateEmail tells a subscriber that a course they follow changed
func (e *EmailService) SendCourseUpdateEmail(toEmail, courseName string) error {
	if !e.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	body := fmt.Sprintf(`<p>Курс <b>%s</b> был обновлён.</p>
<p><a href="%s">Перейти на платформу</a></p>`, html.EscapeString(courseName), html.EscapeString(e.appURL))

	return e.sendEmail(toEmail, "Обновление курса", body)
}

// sendEmail sends an email using SMTP with TLS
func (e *EmailService) sendEmail(to, subject, htmlBody string) error {
	headers := []string{
		fmt.Sprintf("From: %s", e.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(h)
		message.WriteString("\r\n")
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	conn.Quit()

	e.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
