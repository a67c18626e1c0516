package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/pkg/utils"
)

type SubmissionHandler struct {
	service *services.SubmissionService
}

func NewSubmissionHandler(service *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Create handles POST /api/submissions
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sub models.Submission
	if err := decodeBody(r, &sub); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), &sub)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWrite(w, result)
}

// List handles GET /api/submissions
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"source":      result.Source,
		"submissions": recordViews(result.Documents),
	})
}

// Statistics handles GET /api/statistics
func (h *SubmissionHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, stats)
}

// Delete handles DELETE /api/submissions/{id}
func (h *SubmissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref := refFromRequest(r, mux.Vars(r)["id"])
	writeMutation(w, h.service.Delete(r.Context(), ref))
}

// DeleteAll handles DELETE /api/submissions
func (h *SubmissionHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	writeMutation(w, h.service.DeleteAll(r.Context()))
}

// DeletePerson handles DELETE /api/submissions/person/{name}
func (h *SubmissionHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" {
		utils.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	writeMutation(w, h.service.DeletePerson(r.Context(), name))
}
