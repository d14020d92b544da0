package notification

import "log/slog"

// LogService is a drop-in Notifier used when SMTP is not configured,
// for development and tests. It records the notification instead of
// sending it; tokens are never logged.
type LogService struct {
	logger *slog.Logger
}

// NewLogService creates a logging notifier.
func NewLogService(logger *slog.Logger) *LogService {
	return &LogService{logger: logger}
}

func (s *LogService) NotifyVerification(to, token, handle string) error {
	s.logger.Info("verification email suppressed (no SMTP configured)", "to", to, "handle", handle)
	return nil
}

func (s *LogService) NotifyPasswordReset(to, token, handle string) error {
	s.logger.Info("password reset email suppressed (no SMTP configured)", "to", to, "handle", handle)
	return nil
}

func (s *LogService) NotifyDeactivationRequested(to, handle string) error {
	s.logger.Info("deactivation notice suppressed (no SMTP configured)", "to", to, "handle", handle)
	return nil
}
