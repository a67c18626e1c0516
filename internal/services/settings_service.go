package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mandoub-backend/internal/auth"
	"mandoub-backend/internal/cache"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/sheets"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const settingsTTL = 10 * time.Minute

var (
	adminSettingsKey = cache.SettingsKeyPrefix + "admin"
	formSettingsKey  = cache.SettingsKeyPrefix + "form"
)

// SettingsService owns the admin and form settings singletons and admin login.
type SettingsService struct {
	Reconciler  *Reconciler
	jwt         *auth.JWTManager
	defaultHash string
	mirror      Mirror
}

// NewSettingsService hashes defaultPassword once; it is accepted until an admin
// password is saved. An empty default disables login until then.
func NewSettingsService(r *Reconciler, jwt *auth.JWTManager, defaultPassword string) (*SettingsService, error) {
	s := &SettingsService{Reconciler: r, jwt: jwt}
	if defaultPassword != "" {
		hash, err := auth.HashPassword(defaultPassword)
		if err != nil {
			return nil, fmt.Errorf("hash default admin password: %w", err)
		}
		s.defaultHash = hash
	}
	return s, nil
}

func (s *SettingsService) SetMirror(m Mirror) { s.mirror = m }

// Get returns the stored settings, or empty settings when none were saved.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings := &models.Settings{}
	if err := s.readSingleton(ctx, models.KindSettings, adminSettingsKey, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save replaces the spreadsheet settings. The admin password is kept.
func (s *SettingsService) Save(ctx context.Context, in *models.Settings) (*WriteResult, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	in.AdminPasswordHash = current.AdminPasswordHash
	in.CorrelationID = current.CorrelationID

	result, err := s.Reconciler.SaveSingleton(ctx, in)
	if err != nil {
		return nil, err
	}
	cache.InvalidateSettingCaches(ctx)
	return result, nil
}

// Login checks the admin password and issues a token.
func (s *SettingsService) Login(ctx context.Context, password string) (string, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	if !s.verifyAdmin(settings, password) {
		return "", ErrInvalidCredentials
	}
	return s.jwt.GenerateToken(auth.RoleAdmin, auth.RoleAdmin)
}

func (s *SettingsService) ChangePassword(ctx context.Context, req *models.UpdatePasswordRequest) (*WriteResult, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !s.verifyAdmin(settings, req.CurrentPassword) {
		return nil, ErrInvalidCredentials
	}
	hash, err := hashField("newPassword", req.NewPassword)
	if err != nil {
		return nil, err
	}
	settings.AdminPasswordHash = hash

	result, err := s.Reconciler.SaveSingleton(ctx, settings)
	if err != nil {
		return nil, err
	}
	cache.InvalidateSettingCaches(ctx)
	if result.Success {
		s.mirrorAction(ctx, sheets.ActionUpdateAdminPassword, map[string]any{"updatedAt": settings.UpdatedAt})
	}
	return result, nil
}

func (s *SettingsService) GetForm(ctx context.Context) (*models.FormSettings, error) {
	form := &models.FormSettings{}
	if err := s.readSingleton(ctx, models.KindFormSettings, formSettingsKey, form); err != nil {
		return nil, err
	}
	return form, nil
}

// SaveForm stores the form settings. An empty password keeps the current one.
func (s *SettingsService) SaveForm(ctx context.Context, in *models.FormSettings) (*WriteResult, error) {
	current, err := s.GetForm(ctx)
	if err != nil {
		return nil, err
	}
	in.CorrelationID = current.CorrelationID

	credentialsChanged := in.Password != "" || in.Username != current.Username
	if in.Password != "" {
		if in.Username == "" {
			return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "username", Message: "required when a form password is set"}}}
		}
		hash, err := hashField("password", in.Password)
		if err != nil {
			return nil, err
		}
		in.PasswordHash = hash
		in.Password = ""
	} else {
		in.PasswordHash = current.PasswordHash
	}

	result, err := s.Reconciler.SaveSingleton(ctx, in)
	if err != nil {
		return nil, err
	}
	cache.InvalidateSettingCaches(ctx)
	if result.Success && credentialsChanged {
		s.mirrorAction(ctx, sheets.ActionUpdateFormCredentials, map[string]any{
			"username":  in.Username,
			"updatedAt": in.UpdatedAt,
		})
	}
	return result, nil
}

// SheetsTarget tells the spreadsheet mirror where to send, if anywhere.
func (s *SettingsService) SheetsTarget(ctx context.Context) (string, bool) {
	settings, err := s.Get(ctx)
	if err != nil || !settings.SheetsEnabled() {
		return "", false
	}
	return settings.GoogleSheetsURL, true
}

func (s *SettingsService) verifyAdmin(settings *models.Settings, password string) bool {
	if password == "" {
		return false
	}
	if settings.AdminPasswordHash != "" {
		return auth.VerifyPassword(settings.AdminPasswordHash, password)
	}
	return s.defaultHash != "" && auth.VerifyPassword(s.defaultHash, password)
}

func (s *SettingsService) readSingleton(ctx context.Context, kind models.Kind, key string, out models.Record) error {
	if data, ok := cache.GetCached(ctx, key); ok {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
	}

	doc, _, err := s.Reconciler.ReadSingleton(ctx, kind)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := models.FromData(doc.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	if data, err := json.Marshal(out); err == nil {
		cache.SetCached(ctx, key, data, settingsTTL)
	}
	return nil
}

func (s *SettingsService) mirrorAction(ctx context.Context, action string, payload map[string]any) {
	if s.mirror != nil {
		s.mirror.Mirror(ctx, action, payload)
	}
}

