// Package notification delivers lifecycle emails over SMTP. Delivery
// is best-effort; callers log and swallow failures.
package notification

import (
	"fmt"
	"net/smtp"
	"net/url"
)

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string

	// AppBaseURL is the public base URL used in verification and reset
	// links, e.g. https://app.example.com.
	AppBaseURL string
}

// EmailService sends lifecycle emails. It satisfies account.Notifier.
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service.
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// NotifyVerification sends the email verification message.
func (s *EmailService) NotifyVerification(to, token, handle string) error {
	verifyURL := s.link("/verify-email", token)
	subject := "Verify Your Email Address"
	body := fmt.Sprintf(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Hi %s, thank you for registering! Please verify your email address to activate your account.</p>
		<p><a href="%s">Click here to verify your email</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire soon, so please use it promptly.</p>
	</body></html>`, handle, verifyURL, verifyURL)
	return s.send(to, subject, body)
}

// NotifyPasswordReset sends the password reset message.
func (s *EmailService) NotifyPasswordReset(to, token, handle string) error {
	resetURL := s.link("/reset-password", token)
	subject := "Reset Your Password"
	body := fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>Hi %s, a password reset has been requested for your account.</p>
		<p><a href="%s">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, handle, resetURL, resetURL)
	return s.send(to, subject, body)
}

// NotifyDeactivationRequested sends the deactivation notice.
func (s *EmailService) NotifyDeactivationRequested(to, handle string) error {
	subject := "Account Deactivation Requested"
	body := fmt.Sprintf(`<html><body>
		<h2>Account Deactivation Requested</h2>
		<p>Hi %s, we received a request to deactivate your account.</p>
		<p>Your account will be deactivated once the grace period ends. Simply log in before then to cancel.</p>
		<p>If you did not request this, please log in and change your password.</p>
	</body></html>`, handle)
	return s.send(to, subject, body)
}

func (s *EmailService) link(path, token string) string {
	return s.config.AppBaseURL + path + "?token=" + url.QueryEscape(token)
}

func (s *EmailService) send(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
