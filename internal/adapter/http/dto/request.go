package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// BankingRequest is the body of /banking/bank and /banking/apply.
type BankingRequest struct {
	Amount decimal.Decimal `json:"amount"`
	ShipID string          `json:"shipId"`
	Year   int             `json:"year"`
}

// ToUseCaseInput converts to use case input.
func (r *BankingRequest) ToUseCaseInput() usecase.BankingInput {
	return usecase.BankingInput{
		ShipID: r.ShipID,
		Year:   r.Year,
		Amount: r.Amount,
	}
}

// SetCBRequest sets the raw compliance balance of a ship-year.
type SetCBRequest struct {
	ShipID string  `json:"shipId"`
	Year   int     `json:"year"`
	CB     float64 `json:"cb"`
}

// PoolMemberRequest is one requested pool member.
type PoolMemberRequest struct {
	AdjustedCBBefore *decimal.Decimal `json:"adjustedCB_before,omitempty"`
	ShipID           string           `json:"shipId"`
}

// CreatePoolRequest represents a request to create a pool.
type CreatePoolRequest struct {
	Members []PoolMemberRequest `json:"members"`
	Year    int                 `json:"year"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePoolRequest) ToUseCaseInput() usecase.CreatePoolInput {
	members := make([]usecase.PoolMemberInput, len(r.Members))
	for i, m := range r.Members {
		members[i] = usecase.PoolMemberInput{
			ShipID:           m.ShipID,
			AdjustedCBBefore: m.AdjustedCBBefore,
		}
	}

	return usecase.CreatePoolInput{
		Members: members,
		Year:    r.Year,
	}
}

// RouteRequest is an upstream route record.
type RouteRequest struct {
	RouteID         string  `json:"routeId"`
	ShipID          string  `json:"shipId,omitempty"`
	VesselType      string  `json:"vesselType"`
	FuelType        string  `json:"fuelType"`
	Year            int     `json:"year"`
	GHGIntensity    float64 `json:"ghgIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Distance        float64 `json:"distance"`
	TotalEmissions  float64 `json:"totalEmissions"`
}

// ToDomain converts to a domain route.
func (r *RouteRequest) ToDomain() *domain.Route {
	return &domain.Route{
		RouteID:         r.RouteID,
		ShipID:          r.ShipID,
		VesselType:      r.VesselType,
		FuelType:        r.FuelType,
		Year:            r.Year,
		GHGIntensity:    r.GHGIntensity,
		FuelConsumption: r.FuelConsumption,
		Distance:        r.Distance,
		TotalEmissions:  r.TotalEmissions,
	}
}

// RoutesToDomain converts a batch of route records.
func RoutesToDomain(routes []RouteRequest) ([]*domain.Route, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: no routes", domain.ErrInvalidInput)
	}

	result := make([]*domain.Route, len(routes))
	for i := range routes {
		result[i] = routes[i].ToDomain()
	}

	return result, nil
}
