package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"go.uber.org/zap"
)

// Audit event types.
const (
	EventUserCreated          = "user.created"
	EventUserLogin            = "user.login"
	EventRoleCreated          = "role.created"
	EventRoleAssigned         = "role.assigned"
	EventRoleRevoked          = "role.revoked"
	EventPermissionCreated    = "permission.created"
	EventPermissionAssigned   = "permission.assigned"
	EventPermissionRevoked    = "permission.revoked"
	auditAttributeEventType   = "event_type"
	auditAttributeContentType = "content_type"
)

// AuditEvent describes an administrative or login action.
type AuditEvent struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actorId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Role       string    `json:"role,omitempty"`
	Permission string    `json:"permission,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher sends a payload to a named channel. *mq.MQ satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Auditor publishes audit events. A nil Auditor or one without a publisher
// drops events.
type Auditor struct {
	publisher Publisher
	channel   string
}

func NewAuditor(publisher Publisher, channel string) *Auditor {
	return &Auditor{publisher: publisher, channel: channel}
}

// Record publishes event. Failures are logged and never returned: the
// audited operation has already been committed.
func (a *Auditor) Record(ctx context.Context, event AuditEvent) {
	if a == nil || a.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.From(ctx).Error("marshal audit event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	attrs := map[string]string{
		auditAttributeEventType:   event.Type,
		auditAttributeContentType: "application/json",
	}
	if _, err := a.publisher.Publish(ctx, a.channel, data, attrs); err != nil {
		logger.From(ctx).Warn("publish audit event", zap.String("type", event.Type), zap.Error(err))
	}
}

// DecodeAuditEvent parses a payload produced by Record.
func DecodeAuditEvent(data []byte) (AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
