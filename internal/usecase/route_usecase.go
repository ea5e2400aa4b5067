package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/iho/cbledger/internal/domain"
)

// RouteUseCase manages upstream route records and baseline comparisons.
type RouteUseCase struct {
	routeRepo RouteRepository
}

// NewRouteUseCase creates a new RouteUseCase.
func NewRouteUseCase(routeRepo RouteRepository) *RouteUseCase {
	return &RouteUseCase{routeRepo: routeRepo}
}

// ListRoutes returns the routes passing filter.
func (uc *RouteUseCase) ListRoutes(ctx context.Context, filter domain.RouteFilter) ([]*domain.Route, error) {
	if filter.Year != 0 {
		if err := domain.ValidateYear(filter.Year); err != nil {
			return nil, err
		}
	}

	return uc.routeRepo.List(ctx, filter)
}

// ImportRoutes validates and upserts routes.
func (uc *RouteUseCase) ImportRoutes(ctx context.Context, routes []*domain.Route) error {
	seen := make(map[string]bool, len(routes))

	for _, r := range routes {
		if err := validateRoute(r); err != nil {
			return err
		}

		if seen[r.RouteID] {
			return fmt.Errorf("%w: duplicate route %s", domain.ErrInvalidInput, r.RouteID)
		}

		seen[r.RouteID] = true
	}

	if len(routes) == 0 {
		return nil
	}

	return uc.routeRepo.Upsert(ctx, routes)
}

func validateRoute(r *domain.Route) error {
	if strings.TrimSpace(r.RouteID) == "" {
		return fmt.Errorf("%w: route id is required", domain.ErrInvalidInput)
	}

	if err := domain.ValidateShipID(r.Owner()); err != nil {
		return err
	}

	if err := domain.ValidateYear(r.Year); err != nil {
		return err
	}

	for name, v := range map[string]float64{
		"ghgIntensity":    r.GHGIntensity,
		"fuelConsumption": r.FuelConsumption,
		"distance":        r.Distance,
		"totalEmissions":  r.TotalEmissions,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s of route %s must be a finite non-negative number", domain.ErrInvalidInput, name, r.RouteID)
		}
	}

	return nil
}

// SetBaseline marks a route as its year's comparison baseline.
func (uc *RouteUseCase) SetBaseline(ctx context.Context, routeID string) error {
	if strings.TrimSpace(routeID) == "" {
		return fmt.Errorf("%w: route id is required", domain.ErrInvalidInput)
	}

	return uc.routeRepo.SetBaseline(ctx, routeID)
}

// GetComparison compares every non-baseline route against its year's baseline.
// Years without a baseline are skipped.
func (uc *RouteUseCase) GetComparison(ctx context.Context) ([]domain.ComparisonRow, error) {
	routes, err := uc.routeRepo.List(ctx, domain.RouteFilter{})
	if err != nil {
		return nil, err
	}

	baselines := make(map[int]*domain.Route)
	for _, r := range routes {
		if r.IsBaseline {
			baselines[r.Year] = r
		}
	}

	rows := make([]domain.ComparisonRow, 0, len(routes))
	for _, r := range routes {
		baseline, ok := baselines[r.Year]
		if !ok || r.IsBaseline {
			continue
		}

		rows = append(rows, domain.Compare(baseline, r))
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RouteID < rows[j].RouteID })

	return rows, nil
}
