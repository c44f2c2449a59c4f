package audit

import (
	"context"

	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// LogAuditService writes audit events to the structured log. It is the sink
// used when neither Kafka nor the database is configured.
type LogAuditService struct {
	logger logger.Logger
}

// NewLogAuditService creates a log-backed AuditService.
func NewLogAuditService(log logger.Logger) service.AuditService {
	return &LogAuditService{logger: log.WithComponent("audit")}
}

// LogEvent implements service.AuditService.
func (s *LogAuditService) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	fields := []logger.Field{
		logger.String("event_id", event.EventID),
		logger.String("event_type", string(event.EventType)),
		logger.String("client_id", event.ClientID),
		logger.String("username", event.Username),
		logger.Bool("success", event.Success),
		logger.Time("timestamp", event.Timestamp),
	}
	if event.JWTID != "" {
		fields = append(fields, logger.String("jti", event.JWTID))
	}
	if event.Reason != "" {
		fields = append(fields, logger.String("reason", event.Reason))
	}
	s.logger.Info(ctx, "audit event", fields...)
	return nil
}

// MultiAuditService fans an event out to several sinks and returns the first error.
type MultiAuditService []service.AuditService

// LogEvent implements service.AuditService.
func (m MultiAuditService) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	var first error
	for _, s := range m {
		if err := s.LogEvent(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
