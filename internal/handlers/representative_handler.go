package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/internal/store"
	"mandoub-backend/pkg/utils"
)

type RepresentativeHandler struct {
	service *services.RepresentativeService
}

func NewRepresentativeHandler(service *services.RepresentativeService) *RepresentativeHandler {
	return &RepresentativeHandler{service: service}
}

// Create handles POST /api/representatives
func (h *RepresentativeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rep models.Representative
	if err := decodeBody(r, &rep); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), &rep)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeWrite(w, result)
}

// List handles GET /api/representatives. Password hashes never leave the server.
func (h *RepresentativeHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"source":          result.Source,
		"representatives": recordViews(result.Documents, "passwordHash"),
	})
}

// Update handles PUT /api/representatives/{id}
func (h *RepresentativeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd models.RepresentativeUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), refFromRequest(r, mux.Vars(r)["id"]), &upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeMutation(w, result)
}

// Delete handles DELETE /api/representatives/{id}. When store B's id is not
// given, the record there is found by correlation id or by exact name and role.
func (h *RepresentativeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref := refFromRequest(r, mux.Vars(r)["id"])
	q := r.URL.Query()
	if name, role := q.Get("name"), q.Get("role"); name != "" && role != "" {
		ref.Match = store.Filter{"name": name, "role": role}
	}
	writeMutation(w, h.service.Delete(r.Context(), ref))
}

// DeleteAll handles DELETE /api/representatives
func (h *RepresentativeHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	writeMutation(w, h.service.DeleteAll(r.Context()))
}
