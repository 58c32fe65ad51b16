package models

import "time"

// UserInfo identifies the actor behind a change.
type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuditInfo records who touched an entity and when. ServerTime is nil until
// the remote store acknowledges the write.
type AuditInfo struct {
	User       UserInfo   `json:"user"`
	ClientTime time.Time  `json:"clientTime"`
	ServerTime *time.Time `json:"serverTime,omitempty"`
}

// FallbackAuditInfo substitutes for audit metadata missing from legacy remote
// documents.
func FallbackAuditInfo() AuditInfo {
	return AuditInfo{
		User:       UserInfo{ID: "", DisplayName: "Unknown user"},
		ClientTime: time.Unix(0, 0).UTC(),
	}
}
