// Package audit provides security and execution audit logging for SIEM
// consumption. Events are logged in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection
	// patterns in a question.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventUnsafeQueryRejected is logged when generated SQL fails the safety
	// validator or the syntax guard.
	EventUnsafeQueryRejected SecurityEventType = "unsafe_query_rejected"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID uuid.UUID         `json:"request_id"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection pattern.
type SQLInjectionDetails struct {
	Question    string `json:"question"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// UnsafeQueryDetails describes generated SQL that was refused.
type UnsafeQueryDetails struct {
	Rule string `json:"rule"` // validator or syntax guard rule name
	SQL  string `json:"sql"`
}

type clientIPKey struct{}

// WithClientIP stores the caller's address for audit events.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, clientIP)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records an injection pattern found in a question.
// Questions never reach SQL directly, so the request still proceeds; the
// event is logged at ERROR level with "critical" severity for alerting.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, record.ID,
//	    audit.SQLInjectionDetails{
//	        Question:    "show tenders'; DROP TABLE tenderTender--",
//	        Fingerprint: "s&1c",
//	    },
//	)
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, requestID uuid.UUID, details SQLInjectionDetails) {
	clientIP := ClientIPFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		RequestID: requestID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Marshaling known types cannot fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection pattern detected in question",
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", requestID.String()),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "critical"),
	)
}

// LogUnsafeQuery records generated SQL that was refused before execution.
// This is logged at WARN level: a refusal usually means the model misbehaved,
// not that someone attacked the service.
func (a *SecurityAuditor) LogUnsafeQuery(ctx context.Context, requestID uuid.UUID, details UnsafeQueryDetails) {
	clientIP := ClientIPFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventUnsafeQueryRejected,
		RequestID: requestID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Unsafe query rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", requestID.String()),
		zap.String("rule", details.Rule),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}
