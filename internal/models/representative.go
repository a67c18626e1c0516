package models

import (
	"strings"
	"time"

	"mandoub-backend/internal/timeutil"
)

// Representative roles as stored in both backends
const (
	RoleDelegate   = "مندوب"
	RoleSupervisor = "مشرف"
)

// Representative is a field agent or supervisor.
type Representative struct {
	CorrelationID string `json:"correlationId,omitempty"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Location      string `json:"location"`
	Active        *bool  `json:"active,omitempty"`
	Username      string `json:"username,omitempty"`
	// Password is accepted on input only; services replace it with PasswordHash before writing.
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

func (r *Representative) Kind() Kind { return KindRepresentative }

func (r *Representative) GetCorrelationID() string   { return r.CorrelationID }
func (r *Representative) SetCorrelationID(id string) { r.CorrelationID = id }

func (r *Representative) Normalize(now time.Time) {
	r.Name = truncate(r.Name)
	r.Location = truncate(r.Location)
	r.Username = truncate(r.Username)
	if r.Active == nil {
		active := true
		r.Active = &active
	}
	if r.CreatedAt == "" {
		r.CreatedAt = timeutil.ISO(now)
	}
}

func (r *Representative) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(r.Name) == "" {
		verr.add("name", "required")
	}
	switch r.Role {
	case "":
		verr.add("role", "required")
	case RoleDelegate, RoleSupervisor:
	default:
		verr.add("role", "must be "+RoleDelegate+" or "+RoleSupervisor)
	}
	return verr.orNil()
}

// IsActive treats a missing flag as active.
func (r *Representative) IsActive() bool {
	return r.Active == nil || *r.Active
}

// RepresentativeUpdate is a partial update; nil fields are left untouched.
type RepresentativeUpdate struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Location *string `json:"location"`
	Active   *bool   `json:"active"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

// Patch validates the update and returns the fields to merge. Password is
// returned as-is under "password"; callers hash it before writing.
func (u *RepresentativeUpdate) Patch() (map[string]any, error) {
	verr := &ValidationError{}
	patch := make(map[string]any)

	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			verr.add("name", "must not be empty")
		}
		patch["name"] = truncate(*u.Name)
	}
	if u.Role != nil {
		if *u.Role != RoleDelegate && *u.Role != RoleSupervisor {
			verr.add("role", "must be "+RoleDelegate+" or "+RoleSupervisor)
		}
		patch["role"] = *u.Role
	}
	if u.Location != nil {
		patch["location"] = truncate(*u.Location)
	}
	if u.Active != nil {
		patch["active"] = *u.Active
	}
	if u.Username != nil {
		patch["username"] = truncate(*u.Username)
	}
	if u.Password != nil && *u.Password != "" {
		patch["password"] = *u.Password
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "no fields to update"}}}
	}
	return patch, nil
}
