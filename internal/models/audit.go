package models

// CollectionAuditLogs holds the audit trail of mutating API calls.
const CollectionAuditLogs = "audit_logs"

// AuditLog records a mutation performed by a user.
type AuditLog struct {
	Base
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	IPAddress    string         `json:"ipAddress"`
	Changes      map[string]any `json:"changes,omitempty"`
}
