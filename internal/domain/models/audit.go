package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/tenantjwt/pkg/constants"
)

// AuditEvent represents a single audit trail event.
// AuditEvent 表示一条审计事件。
type AuditEvent struct {
	EventID   string                   `json:"event_id" gorm:"primaryKey;size:36"`
	EventType constants.AuditEventType `json:"event_type" gorm:"size:64;index"`
	ClientID  string                   `json:"client_id" gorm:"size:64;index"`
	Username  string                   `json:"username,omitempty" gorm:"size:255"`
	JWTID     string                   `json:"jti,omitempty" gorm:"size:36"`
	Success   bool                     `json:"success"`
	Reason    string                   `json:"reason,omitempty"`
	TraceID   string                   `json:"trace_id,omitempty" gorm:"size:64"`
	Timestamp time.Time                `json:"timestamp" gorm:"index"`
}

// TableName binds the model to its table for gorm.
func (AuditEvent) TableName() string {
	return constants.TableAuditEvents
}

// NewAuditEvent creates a new audit event.
func NewAuditEvent(eventType constants.AuditEventType, clientID, username string, success bool) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		ClientID:  clientID,
		Username:  username,
		Success:   success,
		Timestamp: time.Now().UTC(),
	}
}

// WithReason sets the failure reason.
func (a *AuditEvent) WithReason(reason string) *AuditEvent {
	a.Reason = reason
	return a
}

// WithJWTID sets the token id the event refers to.
func (a *AuditEvent) WithJWTID(jti string) *AuditEvent {
	a.JWTID = jti
	return a
}

// WithTraceID sets the trace id.
func (a *AuditEvent) WithTraceID(traceID string) *AuditEvent {
	a.TraceID = traceID
	return a
}
