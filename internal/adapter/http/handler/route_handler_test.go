package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
)

type routeServiceStub struct {
	routes   []*domain.Route
	filter   domain.RouteFilter
	baseline string
}

func (s *routeServiceStub) ListRoutes(_ context.Context, filter domain.RouteFilter) ([]*domain.Route, error) {
	s.filter = filter
	return s.routes, nil
}

func (s *routeServiceStub) ImportRoutes(_ context.Context, routes []*domain.Route) error {
	s.routes = append(s.routes, routes...)
	return nil
}

func (s *routeServiceStub) SetBaseline(_ context.Context, routeID string) error {
	for _, r := range s.routes {
		if r.RouteID == routeID {
			s.baseline = routeID
			return nil
		}
	}

	return domain.ErrRouteNotFound
}

func (s *routeServiceStub) GetComparison(context.Context) ([]domain.ComparisonRow, error) {
	return []domain.ComparisonRow{{RouteID: "R002", BaselineGHG: 91, ComparisonGHG: 88, PercentDiff: -3.3, Compliant: true}}, nil
}

func newRouteTestRouter(stub *routeServiceStub) http.Handler {
	h := NewRouteHandler(stub)

	r := chi.NewRouter()
	r.Get("/routes", h.List)
	r.Post("/routes", h.Import)
	r.Get("/routes/comparison", h.Comparison)
	r.Post("/routes/{id}/baseline", h.SetBaseline)

	return r
}

func TestRouteHandler_ImportAndList(t *testing.T) {
	stub := &routeServiceStub{}
	r := newRouteTestRouter(stub)

	body := `[{"routeId":"R001","vesselType":"Container","fuelType":"HFO","year":2024,"ghgIntensity":91}]`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes?vesselType=Container&fuelType=HFO&year=2024", nil))

	if stub.filter != (domain.RouteFilter{VesselType: "Container", FuelType: "HFO", Year: 2024}) {
		t.Fatalf("unexpected filter %+v", stub.filter)
	}

	var routes []dto.RouteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(routes) != 1 || routes[0].RouteID != "R001" {
		t.Fatalf("unexpected routes %+v", routes)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes", strings.NewReader(`[]`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestRouteHandler_Baseline(t *testing.T) {
	stub := &routeServiceStub{routes: []*domain.Route{{RouteID: "R001", Year: 2024}}}
	r := newRouteTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes/R001/baseline", nil))
	if rec.Code != http.StatusNoContent || stub.baseline != "R001" {
		t.Fatalf("expected 204 and baseline set, got %d %q", rec.Code, stub.baseline)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/routes/R404/baseline", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouteHandler_Comparison(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouteTestRouter(&routeServiceStub{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes/comparison", nil))

	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(rows) != 1 || rows[0]["routeId"] != "R002" || rows[0]["baselineGhg"] != 91.0 || rows[0]["compliant"] != true {
		t.Fatalf("unexpected rows %v", rows)
	}
}
