package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cbledger/internal/domain"
)

const routeColumns = `route_id, ship_id, vessel_type, fuel_type, year, ghg_intensity,
	fuel_consumption, distance, total_emissions, is_baseline`

// RouteRepository implements usecase.RouteRepository.
type RouteRepository struct {
	db dbtx
}

// NewRouteRepository creates a new RouteRepository.
func NewRouteRepository(pool *pgxpool.Pool) *RouteRepository {
	return newRouteRepository(pool)
}

func newRouteRepository(db dbtx) *RouteRepository {
	return &RouteRepository{db: db}
}

// Upsert inserts or replaces routes in one transaction. A route keeps its
// baseline flag unless its year changes.
func (r *RouteRepository) Upsert(ctx context.Context, routes []*domain.Route) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, route := range routes {
			_, err := tx.Exec(ctx, `INSERT INTO routes (`+routeColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
				ON CONFLICT (route_id) DO UPDATE SET
					ship_id = EXCLUDED.ship_id,
					vessel_type = EXCLUDED.vessel_type,
					fuel_type = EXCLUDED.fuel_type,
					year = EXCLUDED.year,
					ghg_intensity = EXCLUDED.ghg_intensity,
					fuel_consumption = EXCLUDED.fuel_consumption,
					distance = EXCLUDED.distance,
					total_emissions = EXCLUDED.total_emissions,
					is_baseline = routes.is_baseline AND routes.year = EXCLUDED.year`,
				route.RouteID, route.ShipID, route.VesselType, route.FuelType, route.Year,
				route.GHGIntensity, route.FuelConsumption, route.Distance, route.TotalEmissions,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert route %s: %w", route.RouteID, err)
			}
		}

		return nil
	})
}

// List returns routes passing filter ordered by RouteID.
func (r *RouteRepository) List(ctx context.Context, filter domain.RouteFilter) ([]*domain.Route, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.VesselType != "" {
		args = append(args, filter.VesselType)
		conditions = append(conditions, fmt.Sprintf("vessel_type = $%d", len(args)))
	}

	if filter.FuelType != "" {
		args = append(args, filter.FuelType)
		conditions = append(conditions, fmt.Sprintf("fuel_type = $%d", len(args)))
	}

	if filter.Year != 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}

	query := `SELECT ` + routeColumns + ` FROM routes`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY route_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := make([]*domain.Route, 0)

	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}

		routes = append(routes, route)
	}

	return routes, rows.Err()
}

// GetByID retrieves a route by ID.
func (r *RouteRepository) GetByID(ctx context.Context, routeID string) (*domain.Route, error) {
	route, err := scanRoute(r.db.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE route_id = $1`, routeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRouteNotFound
		}

		return nil, err
	}

	return route, nil
}

// SetBaseline makes routeID the only baseline of its year.
func (r *RouteRepository) SetBaseline(ctx context.Context, routeID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var year int

		err := tx.QueryRow(ctx, `SELECT year FROM routes WHERE route_id = $1 FOR UPDATE`, routeID).Scan(&year)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRouteNotFound
			}

			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE routes SET is_baseline = FALSE WHERE year = $1 AND is_baseline`, year); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE routes SET is_baseline = TRUE WHERE route_id = $1`, routeID)

		return err
	})
}

func scanRoute(row pgx.Row) (*domain.Route, error) {
	var route domain.Route

	err := row.Scan(
		&route.RouteID,
		&route.ShipID,
		&route.VesselType,
		&route.FuelType,
		&route.Year,
		&route.GHGIntensity,
		&route.FuelConsumption,
		&route.Distance,
		&route.TotalEmissions,
		&route.IsBaseline,
	)
	if err != nil {
		return nil, err
	}

	return &route, nil
}
