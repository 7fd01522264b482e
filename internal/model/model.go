// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/jdue/internal/recurrence"
)

// Tokens collects an issued session credential.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// UserStatus is the account lifecycle state managed by administrators.
type UserStatus string

const (
	StatusActive      UserStatus = "active"
	StatusBanned      UserStatus = "banned"
	StatusDeactivated UserStatus = "deactivated"
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusBanned, StatusDeactivated:
		return true
	}
	return false
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID          uuid.UUID // PK
	Username    string    // unique, case-insensitive
	Email       string    // unique, case-insensitive
	PwdHash     []byte    // Argon2id(password, SaltAuth); empty for passkey-only accounts
	SaltAuth    []byte    // per-user auth salt
	IsAdmin     bool
	Status      UserStatus
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Credential is a registered WebAuthn authenticator (passkey).
type Credential struct {
	ID         []byte    // authenticator-issued credential id, globally unique
	UserID     uuid.UUID // owner
	PublicKey  []byte    // SPKI DER
	Algorithm  int64     // COSE algorithm identifier, e.g. -7 for ES256
	SignCount  uint32
	AAGUID     []byte
	Name       string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// CeremonyKind tells which WebAuthn ceremony a challenge was issued for.
type CeremonyKind string

const (
	CeremonyRegistration   CeremonyKind = "registration"
	CeremonyAuthentication CeremonyKind = "authentication"
)

// Challenge is a single-use WebAuthn challenge bound to one ceremony.
type Challenge struct {
	ID        uuid.UUID
	Ceremony  CeremonyKind
	UserID    uuid.UUID // uuid.Nil for authentication (user unknown in advance)
	Value     []byte
	ExpiresAt time.Time
}

// Project groups tasks of one user.
type Project struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ReminderUnit is the unit of a reminder offset.
type ReminderUnit string

const (
	UnitMinutes ReminderUnit = "minutes"
	UnitHours   ReminderUnit = "hours"
	UnitDays    ReminderUnit = "days"
)

// Valid reports whether u is a known unit.
func (u ReminderUnit) Valid() bool {
	return u == UnitMinutes || u == UnitHours || u == UnitDays
}

// Reminder fires at a fixed offset before or after a task's due date.
type Reminder struct {
	Value    int          `json:"value"`
	Unit     ReminderUnit `json:"unit"`
	IsBefore bool         `json:"isBefore"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	UserID      uuid.UUID // owner, resolved through the project
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	IsComplete  bool
	Recurrence  recurrence.Rule // nil when the task does not repeat
	Reminders   []Reminder
	// NotificationsSent maps a reminder key to the Unix millis it last fired.
	NotificationsSent map[string]int64
	Labels            []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Notification is a delivered (or queued) user-facing message.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TaskID    *uuid.UUID
	Title     string
	Body      string
	Tag       string // dedupe tag
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Stats is the admin dashboard summary.
type Stats struct {
	UserCount    int64 `json:"userCount"`
	ProjectCount int64 `json:"projectCount"`
	TaskCount    int64 `json:"taskCount"`
}
