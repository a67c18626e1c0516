package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandoub-backend/internal/auth"
	"mandoub-backend/internal/config"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/sheets"
)

func newTestSettingsService(t *testing.T) (*SettingsService, *auth.JWTManager, *Reconciler) {
	t.Helper()
	r, _, _, _ := newTestReconciler()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "mandoub-backend"
	jwt := auth.NewJWTManager(cfg)

	svc, err := NewSettingsService(r, jwt, "admin123")
	require.NoError(t, err)
	return svc, jwt, r
}

func TestLoginWithDefaultPassword(t *testing.T) {
	svc, jwt, _ := newTestSettingsService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login(ctx, "admin123")
	require.NoError(t, err)
	claims, err := jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestChangePasswordReplacesDefault(t *testing.T) {
	svc, _, _ := newTestSettingsService(t)
	m := &recordingMirror{}
	svc.SetMirror(m)
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, &models.UpdatePasswordRequest{CurrentPassword: "nope", NewPassword: "newpass1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.ChangePassword(ctx, &models.UpdatePasswordRequest{CurrentPassword: "admin123", NewPassword: "abc"})
	assert.ErrorIs(t, err, models.ErrValidation)

	res, err := svc.ChangePassword(ctx, &models.UpdatePasswordRequest{CurrentPassword: "admin123", NewPassword: "newpass1"})
	require.NoError(t, err)
	assert.Equal(t, SavedBoth, res.Saved)
	assert.Equal(t, []string{sheets.ActionUpdateAdminPassword}, m.actions)

	_, err = svc.Login(ctx, "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "newpass1")
	assert.NoError(t, err)
}

func TestSaveSettingsKeepsPassword(t *testing.T) {
	svc, _, _ := newTestSettingsService(t)
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, &models.UpdatePasswordRequest{CurrentPassword: "admin123", NewPassword: "newpass1"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, &models.Settings{GoogleSheetsURL: "https://script.example.com/exec", EnableGoogleSheets: true})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "newpass1")
	assert.NoError(t, err)

	endpoint, enabled := svc.SheetsTarget(ctx)
	assert.True(t, enabled)
	assert.Equal(t, "https://script.example.com/exec", endpoint)

	_, err = svc.Save(ctx, &models.Settings{EnableGoogleSheets: true})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSaveFormHashesPassword(t *testing.T) {
	svc, _, _ := newTestSettingsService(t)
	ctx := context.Background()

	_, err := svc.SaveForm(ctx, &models.FormSettings{Title: "Campaign", Enabled: true, Username: "field", Password: "fieldpass"})
	require.NoError(t, err)

	form, err := svc.GetForm(ctx)
	require.NoError(t, err)
	assert.Empty(t, form.Password)
	assert.True(t, auth.VerifyPassword(form.PasswordHash, "fieldpass"))

	// empty password keeps the stored hash
	_, err = svc.SaveForm(ctx, &models.FormSettings{Title: "Campaign 2", Enabled: false, Username: "field"})
	require.NoError(t, err)
	form, err = svc.GetForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Campaign 2", form.Title)
	assert.True(t, auth.VerifyPassword(form.PasswordHash, "fieldpass"))
}

func TestRepresentativePasswordIsHashed(t *testing.T) {
	r, a, _, _ := newTestReconciler()
	svc := NewRepresentativeService(r)
	ctx := context.Background()

	res, err := svc.Create(ctx, &models.Representative{Name: "Rep 1", Role: models.RoleDelegate, Username: "rep1", Password: "rep1pass"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	docs, err := a.List(ctx, "representatives", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Data["password"])
	assert.True(t, auth.VerifyPassword(docs[0].Data["passwordHash"].(string), "rep1pass"))
	assert.Equal(t, true, docs[0].Data["active"])

	bad := "x"
	_, err = svc.Update(ctx, Ref{CorrelationID: res.CorrelationID}, &models.RepresentativeUpdate{Role: &bad})
	assert.ErrorIs(t, err, models.ErrValidation)

	loc := "Aswan"
	upd, err := svc.Update(ctx, Ref{CorrelationID: res.CorrelationID}, &models.RepresentativeUpdate{Location: &loc})
	require.NoError(t, err)
	assert.True(t, upd.Success)
}
