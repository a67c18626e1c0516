package services

import (
	"errors"
	"fmt"

	"mandoub-backend/internal/auth"
	"mandoub-backend/internal/models"
)

// hashField hashes a newly chosen password, reporting a short one as a
// validation error on field.
func hashField(field, password string) (string, error) {
	hash, err := auth.HashNewPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return "", &models.ValidationError{Fields: []models.FieldError{{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength),
		}}}
	}
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", field, err)
	}
	return hash, nil
}
