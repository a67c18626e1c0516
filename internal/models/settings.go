package models

import (
	"net/url"
	"time"

	"mandoub-backend/internal/timeutil"
)

// Settings is the admin configuration singleton. Each store keeps its own copy.
type Settings struct {
	CorrelationID      string `json:"correlationId,omitempty"`
	AdminPasswordHash  string `json:"adminPasswordHash,omitempty"`
	GoogleSheetsURL    string `json:"googleSheetsUrl"`
	EnableGoogleSheets bool   `json:"enableGoogleSheets"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

func (s *Settings) Kind() Kind { return KindSettings }

func (s *Settings) GetCorrelationID() string   { return s.CorrelationID }
func (s *Settings) SetCorrelationID(id string) { s.CorrelationID = id }

func (s *Settings) Normalize(now time.Time) {
	s.UpdatedAt = timeutil.ISO(now)
}

func (s *Settings) Validate() error {
	verr := &ValidationError{}
	if s.GoogleSheetsURL != "" {
		u, err := url.Parse(s.GoogleSheetsURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			verr.add("googleSheetsUrl", "must be an http(s) URL")
		}
	}
	if s.EnableGoogleSheets && s.GoogleSheetsURL == "" {
		verr.add("googleSheetsUrl", "required when spreadsheet sync is enabled")
	}
	return verr.orNil()
}

// SheetsEnabled reports whether mirroring has somewhere to go.
func (s *Settings) SheetsEnabled() bool {
	return s != nil && s.EnableGoogleSheets && s.GoogleSheetsURL != ""
}

// FormSettings configures the public submission form.
type FormSettings struct {
	CorrelationID string `json:"correlationId,omitempty"`
	Title         string `json:"title"`
	Enabled       bool   `json:"enabled"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	PasswordHash  string `json:"passwordHash,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func (f *FormSettings) Kind() Kind { return KindFormSettings }

func (f *FormSettings) GetCorrelationID() string   { return f.CorrelationID }
func (f *FormSettings) SetCorrelationID(id string) { f.CorrelationID = id }

func (f *FormSettings) Normalize(now time.Time) {
	f.Title = truncate(f.Title)
	f.Username = truncate(f.Username)
	f.UpdatedAt = timeutil.ISO(now)
}

func (f *FormSettings) Validate() error {
	verr := &ValidationError{}
	if f.Password != "" && f.Username == "" {
		verr.add("username", "required when a form password is set")
	}
	return verr.orNil()
}

// UpdatePasswordRequest changes the admin password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Password string `json:"password"`
}
