package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/internal/store"
	"mandoub-backend/pkg/utils"
)

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrDuplicateSubmission):
		utils.Error(w, http.StatusConflict, "Duplicate submission")
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Error(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "Not found")
	default:
		log := logger.For("handlers")
		log.Error().Err(err).Msg("request failed")
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeWrite answers a dual write. A write that landed nowhere is a 503 that
// still carries the per-store outcome.
func writeWrite(w http.ResponseWriter, result *services.WriteResult) {
	if !result.Success {
		utils.JSON(w, http.StatusServiceUnavailable, result)
		return
	}
	utils.JSON(w, http.StatusCreated, result)
}

// writeMutation answers an update or delete.
func writeMutation(w http.ResponseWriter, result *services.MutationResult) {
	switch {
	case result.Success:
		utils.JSON(w, http.StatusOK, result)
	case result.PerStore.StoreA.NotFound && result.PerStore.StoreB.NotFound:
		utils.JSON(w, http.StatusNotFound, result)
	default:
		utils.JSON(w, http.StatusServiceUnavailable, result)
	}
}

func decodeBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return &models.ValidationError{Fields: []models.FieldError{{Field: "body", Message: "invalid JSON"}}}
	}
	return nil
}

// recordView flattens a stored document for the API: its fields plus the id
// assigned by the store that served it.
func recordView(doc *store.Document, hidden ...string) map[string]any {
	view := store.Merge(doc.Data, nil)
	for _, key := range hidden {
		delete(view, key)
	}
	view["id"] = doc.ID
	return view
}

func recordViews(docs []*store.Document, hidden ...string) []map[string]any {
	views := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		views = append(views, recordView(doc, hidden...))
	}
	return views
}

// refFromRequest reads the store A id from the path and the optional store B
// id and correlation id from the query string.
func refFromRequest(r *http.Request, idA string) services.Ref {
	q := r.URL.Query()
	return services.Ref{
		IDA:           idA,
		IDB:           q.Get("idB"),
		CorrelationID: q.Get("correlationId"),
	}
}
