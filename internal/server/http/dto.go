package httpserver

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/recurrence"
	"github.com/and161185/jdue/internal/service"
	"github.com/and161185/jdue/internal/webauthn"
)

type userDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsAdmin     bool       `json:"isAdmin"`
	Status      string     `json:"status"`
	HasPassword bool       `json:"hasPassword"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
}

func toUserDTO(u model.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		Status:      string(u.Status),
		HasPassword: len(u.PwdHash) > 0,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type sessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userDTO   `json:"user"`
}

func toSessionDTO(t model.Tokens, u model.User) sessionDTO {
	return sessionDTO{Token: t.AccessToken, ExpiresAt: t.ExpiresAt, User: toUserDTO(u)}
}

type projectDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProjectDTO(p model.Project) projectDTO {
	return projectDTO{ID: p.ID, Name: p.Name, UserID: p.UserID, CreatedAt: p.CreatedAt}
}

type taskDTO struct {
	ID                uuid.UUID        `json:"id"`
	ProjectID         uuid.UUID        `json:"projectId"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Priority          model.Priority   `json:"priority"`
	DueDate           *time.Time       `json:"dueDate"`
	IsComplete        bool             `json:"isComplete"`
	Recurrence        json.RawMessage  `json:"recurrence"`
	Reminders         []model.Reminder `json:"reminders"`
	NotificationsSent map[string]int64 `json:"notificationsSent"`
	Labels            []string         `json:"labels"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func toTaskDTO(t model.Task) (taskDTO, error) {
	rec, err := recurrence.Marshal(t.Recurrence)
	if err != nil {
		return taskDTO{}, err
	}
	d := taskDTO{
		ID:                t.ID,
		ProjectID:         t.ProjectID,
		Title:             t.Title,
		Description:       t.Description,
		Priority:          t.Priority,
		DueDate:           t.DueDate,
		IsComplete:        t.IsComplete,
		Recurrence:        rec,
		Reminders:         t.Reminders,
		NotificationsSent: t.NotificationsSent,
		Labels:            t.Labels,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if d.Reminders == nil {
		d.Reminders = []model.Reminder{}
	}
	if d.NotificationsSent == nil {
		d.NotificationsSent = map[string]int64{}
	}
	if d.Labels == nil {
		d.Labels = []string{}
	}
	return d, nil
}

func toTaskDTOs(tasks []model.Task) ([]taskDTO, error) {
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		d, err := toTaskDTO(t)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// taskRequest is the create/update body.
type taskRequest struct {
	ProjectID   uuid.UUID        `json:"projectId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    model.Priority   `json:"priority"`
	DueDate     *string          `json:"dueDate"`
	IsComplete  bool             `json:"isComplete"`
	Recurrence  json.RawMessage  `json:"recurrence"`
	Reminders   []model.Reminder `json:"reminders"`
	Labels      []string         `json:"labels"`
}

// Layouts accepted for due dates without a zone, read in the server timezone.
var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

func parseDueDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("validation: bad dueDate %q: %w", s, errs.ErrValidation)
}

func (r taskRequest) input(loc *time.Location) (service.TaskInput, error) {
	in := service.TaskInput{
		ProjectID:   r.ProjectID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		IsComplete:  r.IsComplete,
		Reminders:   r.Reminders,
		Labels:      r.Labels,
	}
	if r.DueDate != nil && strings.TrimSpace(*r.DueDate) != "" {
		due, err := parseDueDate(strings.TrimSpace(*r.DueDate), loc)
		if err != nil {
			return in, err
		}
		in.DueDate = &due
	}
	rule, err := recurrence.Unmarshal(r.Recurrence)
	if err != nil {
		return in, fmt.Errorf("validation: %v: %w", err, errs.ErrValidation)
	}
	in.Recurrence = rule
	return in, nil
}

type credentialDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Algorithm  int64      `json:"algorithm"`
	SignCount  uint32     `json:"signCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func toCredentialDTO(c model.Credential) credentialDTO {
	return credentialDTO{
		ID:         webauthn.EncodeBase64URL(c.ID),
		Name:       c.Name,
		Algorithm:  c.Algorithm,
		SignCount:  c.SignCount,
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
	}
}

type notificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	TaskID    *uuid.UUID `json:"taskId,omitempty"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Tag       string     `json:"tag"`
	CreatedAt time.Time  `json:"createdAt"`
}

// b64 is a base64url field of a PublicKeyCredential; padding is tolerated.
type b64 []byte

func (b *b64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := webauthn.DecodeBase64URL(s)
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

type registrationRequest struct {
	CeremonyID uuid.UUID `json:"ceremonyId"`
	Name       string    `json:"name"`
	RawID      b64       `json:"rawId"`
	Response   struct {
		ClientDataJSON    b64 `json:"clientDataJSON"`
		AttestationObject b64 `json:"attestationObject"`
	} `json:"response"`
}

func (r registrationRequest) input(userID uuid.UUID) webauthn.RegistrationInput {
	return webauthn.RegistrationInput{
		CeremonyID:        r.CeremonyID,
		UserID:            userID,
		Name:              strings.TrimSpace(r.Name),
		RawID:             r.RawID,
		ClientDataJSON:    r.Response.ClientDataJSON,
		AttestationObject: r.Response.AttestationObject,
	}
}

type assertionRequest struct {
	CeremonyID uuid.UUID `json:"ceremonyId"`
	RawID      b64       `json:"rawId"`
	Response   struct {
		ClientDataJSON    b64 `json:"clientDataJSON"`
		AuthenticatorData b64 `json:"authenticatorData"`
		Signature         b64 `json:"signature"`
		UserHandle        b64 `json:"userHandle"`
	} `json:"response"`
}

func (r assertionRequest) input() webauthn.AuthenticationInput {
	return webauthn.AuthenticationInput{
		CeremonyID:        r.CeremonyID,
		CredentialID:      r.RawID,
		ClientDataJSON:    r.Response.ClientDataJSON,
		AuthenticatorData: r.Response.AuthenticatorData,
		Signature:         r.Response.Signature,
		UserHandle:        r.Response.UserHandle,
	}
}
