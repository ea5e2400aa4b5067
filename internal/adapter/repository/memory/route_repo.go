package memory

import (
	"context"
	"sort"

	"github.com/iho/cbledger/internal/domain"
)

// RouteRepository implements usecase.RouteRepository.
type RouteRepository struct {
	store *Store
}

// NewRouteRepository creates a new RouteRepository.
func NewRouteRepository(store *Store) *RouteRepository {
	return &RouteRepository{store: store}
}

// Upsert inserts or replaces routes by RouteID. The baseline flag of an
// existing route is kept.
func (r *RouteRepository) Upsert(_ context.Context, routes []*domain.Route) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, route := range routes {
		c := *route
		if existing, ok := r.store.routes[route.RouteID]; ok && existing.Year == route.Year {
			c.IsBaseline = existing.IsBaseline
		} else {
			c.IsBaseline = false
		}

		r.store.routes[route.RouteID] = &c
	}

	return nil
}

// List returns routes passing filter ordered by RouteID.
func (r *RouteRepository) List(_ context.Context, filter domain.RouteFilter) ([]*domain.Route, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	routes := make([]*domain.Route, 0, len(r.store.routes))
	for _, route := range r.store.routes {
		if filter.Matches(route) {
			c := *route
			routes = append(routes, &c)
		}
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].RouteID < routes[j].RouteID })

	return routes, nil
}

// GetByID retrieves a route by ID.
func (r *RouteRepository) GetByID(_ context.Context, routeID string) (*domain.Route, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	route, ok := r.store.routes[routeID]
	if !ok {
		return nil, domain.ErrRouteNotFound
	}

	c := *route

	return &c, nil
}

// SetBaseline makes routeID the only baseline of its year.
func (r *RouteRepository) SetBaseline(_ context.Context, routeID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	target, ok := r.store.routes[routeID]
	if !ok {
		return domain.ErrRouteNotFound
	}

	for _, route := range r.store.routes {
		if route.Year == target.Year {
			route.IsBaseline = route.RouteID == routeID
		}
	}

	return nil
}
