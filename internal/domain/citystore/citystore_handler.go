package citystore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

const maxBodyBytes = 1 << 20

// Handler serves the json-server style resource API for cities.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler wires a city store handler.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Register mounts the city routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /cities", h.ListCities)
	mux.HandleFunc("POST /cities", h.CreateCity)
	mux.HandleFunc("GET /cities/{id}", h.GetCity)
	mux.HandleFunc("DELETE /cities/{id}", h.DeleteCity)
}

// ListCities returns the whole collection.
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.svc.ListCities(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

// GetCity returns one city or 404.
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCity(r.Context(), types.CityID(r.PathValue("id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCity stores the posted city. Any id in the body is ignored.
func (h *Handler) CreateCity(w http.ResponseWriter, r *http.Request) {
	var payload types.NewCity
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	created, err := h.svc.CreateCity(r.Context(), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/cities/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

// DeleteCity removes a city and answers with an empty object.
func (h *Handler) DeleteCity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCity(r.Context(), types.CityID(r.PathValue("id"))); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "city not found"})
	case errors.Is(err, types.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		h.logger.ErrorContext(r.Context(), "City store request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
