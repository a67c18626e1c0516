package handlers

import (
	"net/http"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/pkg/utils"
)

type SettingsHandler struct {
	service *services.SettingsService
}

func NewSettingsHandler(service *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

type settingsView struct {
	GoogleSheetsURL    string `json:"googleSheetsUrl"`
	EnableGoogleSheets bool   `json:"enableGoogleSheets"`
	HasCustomPassword  bool   `json:"hasCustomPassword"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

type formSettingsView struct {
	Title       string `json:"title"`
	Enabled     bool   `json:"enabled"`
	Username    string `json:"username,omitempty"`
	HasPassword bool   `json:"hasPassword"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Get(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, settingsView{
		GoogleSheetsURL:    settings.GoogleSheetsURL,
		EnableGoogleSheets: settings.EnableGoogleSheets,
		HasCustomPassword:  settings.AdminPasswordHash != "",
		UpdatedAt:          settings.UpdatedAt,
	})
}

// Save handles PUT /api/settings
func (h *SettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Save(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWrite(w, result)
}

// ChangePassword handles PUT /api/settings/password
func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.ChangePassword(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWrite(w, result)
}

// GetForm handles GET /api/form-settings. Public: the form page reads it.
func (h *SettingsHandler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.GetForm(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, formSettingsView{
		Title:       form.Title,
		Enabled:     form.Enabled,
		Username:    form.Username,
		HasPassword: form.PasswordHash != "",
		UpdatedAt:   form.UpdatedAt,
	})
}

// SaveForm handles PUT /api/form-settings
func (h *SettingsHandler) SaveForm(w http.ResponseWriter, r *http.Request) {
	var req models.FormSettings
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.SaveForm(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWrite(w, result)
}
