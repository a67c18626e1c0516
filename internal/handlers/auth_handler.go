package handlers

import (
	"net/http"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/pkg/utils"
)

type AuthHandler struct {
	settings *services.SettingsService
}

func NewAuthHandler(settings *services.SettingsService) *AuthHandler {
	return &AuthHandler{settings: settings}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := h.settings.Login(r.Context(), req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]string{"token": token})
}
