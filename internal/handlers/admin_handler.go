package handlers

import (
	"context"
	"net/http"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/services"
	"mandoub-backend/pkg/utils"
)

// OutboxStats reports pending and failed retries per status.
type OutboxStats interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type AdminHandler struct {
	reconciler *services.Reconciler
	outbox     OutboxStats
}

// NewAdminHandler takes an optional outbox; without one the outbox view is empty.
func NewAdminHandler(reconciler *services.Reconciler, outbox OutboxStats) *AdminHandler {
	return &AdminHandler{reconciler: reconciler, outbox: outbox}
}

var driftKinds = []models.Kind{
	models.KindSubmission,
	models.KindRepresentative,
	models.KindSettings,
	models.KindFormSettings,
}

// Drift handles GET /api/admin/drift?kind=
func (h *AdminHandler) Drift(w http.ResponseWriter, r *http.Request) {
	kinds := driftKinds
	if name := r.URL.Query().Get("kind"); name != "" {
		kind, err := models.ParseKind(name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		kinds = []models.Kind{kind}
	}

	reports := make([]*services.DriftReport, 0, len(kinds))
	for _, kind := range kinds {
		report, err := h.reconciler.Drift(r.Context(), kind)
		if err != nil {
			utils.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		reports = append(reports, report)
	}
	utils.JSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// Outbox handles GET /api/admin/outbox
func (h *AdminHandler) Outbox(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{}
	if h.outbox != nil {
		var err error
		if counts, err = h.outbox.CountByStatus(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	utils.JSON(w, http.StatusOK, map[string]any{"outbox": counts})
}
