package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
)

// RouteService defines the behavior needed by RouteHandler.
type RouteService interface {
	ListRoutes(ctx context.Context, filter domain.RouteFilter) ([]*domain.Route, error)
	ImportRoutes(ctx context.Context, routes []*domain.Route) error
	SetBaseline(ctx context.Context, routeID string) error
	GetComparison(ctx context.Context) ([]domain.ComparisonRow, error)
}

// RouteHandler handles route HTTP requests.
type RouteHandler struct {
	routeUC RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routeUC RouteService) *RouteHandler {
	return &RouteHandler{routeUC: routeUC}
}

// List lists routes, optionally filtered by vesselType, fuelType and year.
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	routes, err := h.routeUC.ListRoutes(r.Context(), domain.RouteFilter{
		VesselType: q.Get("vesselType"),
		FuelType:   q.Get("fuelType"),
		Year:       parseIntQuery(r, "year", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list routes", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoutesFromDomain(routes))
}

// Import upserts a batch of routes.
func (h *RouteHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req []dto.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	routes, err := dto.RoutesToDomain(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid routes", err.Error())
		return
	}

	if err := h.routeUC.ImportRoutes(r.Context(), routes); err != nil {
		writeDomainError(w, r, "failed to import routes", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoutesFromDomain(routes))
}

// SetBaseline marks a route as its year's comparison baseline.
func (h *RouteHandler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing route ID", "")
		return
	}

	if err := h.routeUC.SetBaseline(r.Context(), id); err != nil {
		writeDomainError(w, r, "failed to set baseline", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Comparison compares every route with its year's baseline.
func (h *RouteHandler) Comparison(w http.ResponseWriter, r *http.Request) {
	rows, err := h.routeUC.GetComparison(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to compare routes", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ComparisonsFromDomain(rows))
}
