package models

import "time"

const (
	NotifyNewSignIn       = "auth.new_sign_in"
	NotifySessionsRevoked = "auth.sessions_revoked"
	NotifyPasswordChanged = "auth.password_changed"
)

// Notification is a push message addressed to one user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    int            `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
