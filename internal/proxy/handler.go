package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/metrics"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/store"
	"mandoub-backend/internal/timeutil"
	"mandoub-backend/pkg/utils"
)

// DefaultTimeout covers queue wait plus the store call.
const DefaultTimeout = 15 * time.Second

// Response is the proxy's success envelope.
type Response struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	Store   store.DocumentStore
	Queue   *Queue
	Timeout time.Duration
	log     zerolog.Logger
}

func NewHandler(s store.DocumentStore, q *Queue, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{Store: s, Queue: q, Timeout: timeout, log: logger.For("proxy")}
}

// Register mounts the store routes under /api/{resource}.
func (h *Handler) Register(r *mux.Router, resource string) {
	api := r.PathPrefix("/api/" + resource).Subrouter()
	api.HandleFunc("/{collection}", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/{collection}", h.List).Methods(http.MethodGet)
	api.HandleFunc("/{collection}/{id}", h.Update).Methods(http.MethodPatch)
	api.HandleFunc("/{collection}/{id}", h.Delete).Methods(http.MethodDelete)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Create validates the body for the collection's kind before queueing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	kind, ok := collectionKind(mux.Vars(r)["collection"])
	if !ok {
		utils.Error(w, http.StatusNotFound, "unknown collection")
		return
	}

	rec, err := models.New(kind)
	if err != nil {
		utils.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec.Normalize(timeutil.Now())
	if err := rec.Validate(); err != nil {
		metrics.ProxyRequestsTotal.WithLabelValues("rejected").Inc()
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := models.ToData(rec)
	if err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.URL.Query().Get("id")
	h.run(w, r, func(ctx context.Context) (*Response, error) {
		doc, err := h.Store.Create(ctx, kind.Collection(), id, data)
		if err != nil {
			return nil, err
		}
		return &Response{Success: true, ID: doc.ID, Data: doc}, nil
	})
}

// List treats every query parameter as an equality filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := collectionKind(mux.Vars(r)["collection"])
	if !ok {
		utils.Error(w, http.StatusNotFound, "unknown collection")
		return
	}

	filter := store.Filter{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filter[key] = values[0]
		}
	}

	h.run(w, r, func(ctx context.Context) (*Response, error) {
		docs, err := h.Store.List(ctx, kind.Collection(), filter)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = []*store.Document{}
		}
		return &Response{Success: true, Data: docs}, nil
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := collectionKind(vars["collection"])
	if !ok {
		utils.Error(w, http.StatusNotFound, "unknown collection")
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := vars["id"]
	h.run(w, r, func(ctx context.Context) (*Response, error) {
		doc, err := h.Store.Update(ctx, kind.Collection(), id, patch)
		if err != nil {
			return nil, err
		}
		return &Response{Success: true, ID: doc.ID, Data: doc}, nil
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := collectionKind(vars["collection"])
	if !ok {
		utils.Error(w, http.StatusNotFound, "unknown collection")
		return
	}

	id := vars["id"]
	h.run(w, r, func(ctx context.Context) (*Response, error) {
		if err := h.Store.Delete(ctx, kind.Collection(), id); err != nil {
			return nil, err
		}
		return &Response{Success: true, ID: id}, nil
	})
}

type outcome struct {
	resp *Response
	err  error
}

// run queues the call and answers with whichever comes first: the store result
// or the request deadline. A late store result is dropped.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, call func(ctx context.Context) (*Response, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	arrived := time.Now()
	release, err := h.Queue.Acquire(ctx)
	if err != nil {
		h.timedOut(w, r, "queued")
		return
	}
	metrics.ProxyQueueWait.Observe(time.Since(arrived).Seconds())

	done := make(chan outcome, 1)
	go func() {
		defer release()
		resp, err := call(ctx)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) {
				h.timedOut(w, r, "in_flight")
				return
			}
			status := StatusFor(o.err)
			metrics.ProxyRequestsTotal.WithLabelValues("failed").Inc()
			h.log.Warn().Err(o.err).Str("path", r.URL.Path).Int("status", status).Msg("store call failed")
			utils.Error(w, status, o.err.Error())
			return
		}
		metrics.ProxyRequestsTotal.WithLabelValues("completed").Inc()
		utils.JSON(w, http.StatusOK, o.resp)
	case <-ctx.Done():
		release()
		h.timedOut(w, r, "in_flight")
	}
}

func (h *Handler) timedOut(w http.ResponseWriter, r *http.Request, stage string) {
	metrics.ProxyRequestsTotal.WithLabelValues("timed_out").Inc()
	h.log.Warn().Str("path", r.URL.Path).Str("stage", stage).Dur("timeout", h.Timeout).Msg("request timed out")
	utils.Error(w, http.StatusRequestTimeout, TimeoutMessage)
}

// collectionKind accepts collection names and the hyphenated form-settings path.
func collectionKind(segment string) (models.Kind, bool) {
	if segment == "form-settings" {
		return models.KindFormSettings, true
	}
	return models.KindForCollection(segment)
}
