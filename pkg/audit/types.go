package audit

import "time"

// EventType names what happened, as "<resource>.<action>"
type EventType string

const (
	EventTypeAuthSignIn       EventType = "auth.sign_in"
	EventTypeAuthSignInFailed EventType = "auth.sign_in_failed"
	EventTypeAuthSignOut      EventType = "auth.sign_out"
	EventTypeAuthSignUp       EventType = "auth.sign_up"

	EventTypeLicenseIssue   EventType = "license.issue"
	EventTypeLicenseConsume EventType = "license.consume"
	EventTypeLicenseRevoke  EventType = "license.revoke"

	EventTypeTenantCreate            EventType = "tenant.create"
	EventTypeTenantSettingsUpdate    EventType = "tenant.settings_update"
	EventTypeTenantDeactivate        EventType = "tenant.deactivate"
	EventTypeTenantReactivate        EventType = "tenant.reactivate"
	EventTypeTenantOwnershipTransfer EventType = "tenant.ownership_transfer"

	EventTypeInvitationCreate EventType = "invitation.create"
	EventTypeInvitationRedeem EventType = "invitation.redeem"
	EventTypeInvitationDelete EventType = "invitation.delete"
	EventTypeInvitationPurge  EventType = "invitation.purge"

	EventTypeUserRoleChange    EventType = "user.role_change"
	EventTypeUserActivate      EventType = "user.activate"
	EventTypeUserDeactivate    EventType = "user.deactivate"
	EventTypeUserProfileUpdate EventType = "user.profile_update"
)

type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

type ResourceType string

const (
	ResourceTypeLicense    ResourceType = "license"
	ResourceTypeTenant     ResourceType = "tenant"
	ResourceTypeInvitation ResourceType = "invitation"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeSession    ResourceType = "session"
)

// AuditEvent is one entry of the trail. ActorID is a user id or
// "operator:<name>" for CLI actions; TenantID is the tenant acted upon.
type AuditEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	ActorID      string       `json:"actor_id,omitempty"`
	TenantID     string       `json:"tenant_id,omitempty"`
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`
	RequestID    string       `json:"request_id,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	// Changes holds the fields an update touched
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails pairs the values before and after an update
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// SearchFilter selects events; zero fields match anything. Limit 0 means no cap.
type SearchFilter struct {
	TenantID     string
	ActorID      string
	EventType    EventType
	ResourceType ResourceType
	ResourceID   string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
}

// ExportFormat is an encoding accepted by Export
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// RetentionPolicy bounds how long StoreLogger keeps events
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy keeps a year
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 365}
}
