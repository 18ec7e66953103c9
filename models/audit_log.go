package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionAccessDenied AuditAction = "ACCESS_DENIED"
	AuditActionOrderCreated AuditAction = "ORDER_CREATED"
	AuditActionOrderUpdated AuditAction = "ORDER_UPDATED"
	AuditActionOrderDeleted AuditAction = "ORDER_DELETED"
	AuditActionLoginFailed  AuditAction = "LOGIN_FAILED"
)

// Resource types recorded on audit entries
const (
	ResourceTypeAPI   = "API"
	ResourceTypeOrder = "ORDER"
	ResourceTypeAuth  = "AUTH"
)

// Denial reasons written by the request gate
const (
	AuditReasonUnauthorized = "unauthorized"
	AuditReasonInvalidToken = "invalid_token"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorID      *string         `json:"actor_id" db:"actor_id"` // nil when unauthenticated
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourcePath string          `json:"resource_path" db:"resource_path"`
	Reason       string          `json:"reason,omitempty" db:"reason"`
	Details      json.RawMessage `json:"details,omitempty" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id,omitempty" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType, resourcePath string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		ResourcePath: resourcePath,
		Timestamp:    time.Now().UTC(),
	}
}

// WithActor sets the actor ID. A nil actor marks an unauthenticated caller.
func (a *AuditLog) WithActor(actorID *string) *AuditLog {
	a.ActorID = actorID
	return a
}

// WithReason sets the outcome or reason code
func (a *AuditLog) WithReason(reason string) *AuditLog {
	a.Reason = reason
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// Actor returns the actor ID or an empty string for anonymous entries
func (a *AuditLog) Actor() string {
	if a.ActorID == nil {
		return ""
	}
	return *a.ActorID
}
