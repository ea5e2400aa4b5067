package dto

import (
	"time"

	"github.com/iho/cbledger/internal/domain"
	"github.com/iho/cbledger/internal/usecase"
)

// CBResponse carries a single compliance balance.
type CBResponse struct {
	CB     Number `json:"cb"`
	ShipID string `json:"shipId,omitempty"`
	Year   int    `json:"year"`
}

// BankingKPIsResponse represents the outcome of a banking operation.
type BankingKPIsResponse struct {
	CBBefore Number `json:"cb_before"`
	Applied  Number `json:"applied"`
	CBAfter  Number `json:"cb_after"`
}

// BankingKPIsFromDomain converts banking KPIs to response.
func BankingKPIsFromDomain(k *domain.BankingKPIs) *BankingKPIsResponse {
	return &BankingKPIsResponse{
		CBBefore: NumberFrom(k.CBBefore),
		Applied:  NumberFrom(k.Applied),
		CBAfter:  NumberFrom(k.CBAfter),
	}
}

// RecordResponse represents a ship-year ledger record.
type RecordResponse struct {
	UpdatedAt       time.Time `json:"updatedAt"`
	PoolID          *string   `json:"poolId,omitempty"`
	ShipID          string    `json:"shipId"`
	Year            int       `json:"year"`
	RawCB           Number    `json:"rawCB"`
	BankedIn        Number    `json:"bankedIn"`
	AppliedFromBank Number    `json:"appliedFromBank"`
	PoolAdjustment  Number    `json:"poolAdjustment"`
	RemainingCredit Number    `json:"remainingCredit"`
	CBAfter         Number    `json:"cbAfter"`
	Version         int64     `json:"version"`
}

// RecordFromDomain converts a ledger record to response.
func RecordFromDomain(r *domain.ShipYearRecord) *RecordResponse {
	return &RecordResponse{
		UpdatedAt:       r.UpdatedAt,
		PoolID:          r.PoolID,
		ShipID:          r.ShipID,
		Year:            r.Year,
		RawCB:           NumberFrom(r.RawCB),
		BankedIn:        NumberFrom(r.BankedIn),
		AppliedFromBank: NumberFrom(r.AppliedFromBank),
		PoolAdjustment:  NumberFrom(r.PoolAdjustment),
		RemainingCredit: NumberFrom(r.RemainingCredit()),
		CBAfter:         NumberFrom(r.CBAfter()),
		Version:         r.Version,
	}
}

// PoolMemberResponse represents a pool member.
type PoolMemberResponse struct {
	AdjustedCBAfter  *Number `json:"adjustedCB_after,omitempty"`
	ShipID           string  `json:"shipId"`
	AdjustedCBBefore Number  `json:"adjustedCB_before"`
}

// PoolMembersFromDomain converts pool members to responses.
func PoolMembersFromDomain(members []domain.PoolMember) []PoolMemberResponse {
	result := make([]PoolMemberResponse, len(members))
	for i, m := range members {
		result[i] = PoolMemberResponse{
			ShipID:           m.ShipID,
			AdjustedCBBefore: NumberFrom(m.AdjustedCBBefore),
		}

		if m.AdjustedCBAfter != nil {
			after := NumberFrom(*m.AdjustedCBAfter)
			result[i].AdjustedCBAfter = &after
		}
	}

	return result
}

// PoolResponse represents a settled pool.
type PoolResponse struct {
	CreatedAt time.Time            `json:"createdAt"`
	ID        string               `json:"id"`
	Members   []PoolMemberResponse `json:"members"`
	Year      int                  `json:"year"`
}

// PoolFromDomain converts a pool to response.
func PoolFromDomain(p *domain.Pool) *PoolResponse {
	return &PoolResponse{
		CreatedAt: p.CreatedAt,
		ID:        p.ID,
		Members:   PoolMembersFromDomain(p.Members),
		Year:      p.Year,
	}
}

// PoolsFromDomain converts pools to responses.
func PoolsFromDomain(pools []*domain.Pool) []*PoolResponse {
	result := make([]*PoolResponse, len(pools))
	for i, p := range pools {
		result[i] = PoolFromDomain(p)
	}

	return result
}

// RouteResponse represents a route.
type RouteResponse struct {
	RouteID         string  `json:"routeId"`
	ShipID          string  `json:"shipId,omitempty"`
	VesselType      string  `json:"vesselType"`
	FuelType        string  `json:"fuelType"`
	Year            int     `json:"year"`
	GHGIntensity    float64 `json:"ghgIntensity"`
	FuelConsumption float64 `json:"fuelConsumption"`
	Distance        float64 `json:"distance"`
	TotalEmissions  float64 `json:"totalEmissions"`
	IsBaseline      bool    `json:"isBaseline"`
}

// RoutesFromDomain converts routes to responses.
func RoutesFromDomain(routes []*domain.Route) []*RouteResponse {
	result := make([]*RouteResponse, len(routes))
	for i, r := range routes {
		result[i] = &RouteResponse{
			RouteID:         r.RouteID,
			ShipID:          r.ShipID,
			VesselType:      r.VesselType,
			FuelType:        r.FuelType,
			Year:            r.Year,
			GHGIntensity:    r.GHGIntensity,
			FuelConsumption: r.FuelConsumption,
			Distance:        r.Distance,
			TotalEmissions:  r.TotalEmissions,
			IsBaseline:      r.IsBaseline,
		}
	}

	return result
}

// ComparisonResponse compares a route with its year's baseline.
type ComparisonResponse struct {
	RouteID       string  `json:"routeId"`
	BaselineGHG   float64 `json:"baselineGhg"`
	ComparisonGHG float64 `json:"comparisonGhg"`
	PercentDiff   float64 `json:"percentDiff"`
	Compliant     bool    `json:"compliant"`
}

// ComparisonsFromDomain converts comparison rows to responses.
func ComparisonsFromDomain(rows []domain.ComparisonRow) []ComparisonResponse {
	result := make([]ComparisonResponse, len(rows))
	for i, r := range rows {
		result[i] = ComparisonResponse(r)
	}

	return result
}

// DiscrepancyResponse is one reconciliation finding.
type DiscrepancyResponse struct {
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// ReconciliationResponse represents a reconciliation report.
type ReconciliationResponse struct {
	CheckedAt     time.Time             `json:"checkedAt"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	FleetCB       Number                `json:"fleetCB"`
	Year          int                   `json:"year"`
	Records       int                   `json:"records"`
	Pools         int                   `json:"pools"`
	Consistent    bool                  `json:"consistent"`
}

// ReconciliationFromReport converts a reconciliation report to response.
func ReconciliationFromReport(r *usecase.ReconciliationReport) *ReconciliationResponse {
	discrepancies := make([]DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = DiscrepancyResponse{Subject: d.Subject, Detail: d.Detail}
	}

	return &ReconciliationResponse{
		CheckedAt:     r.CheckedAt,
		Discrepancies: discrepancies,
		FleetCB:       NumberFrom(r.FleetCB),
		Year:          r.Year,
		Records:       r.Records,
		Pools:         r.Pools,
		Consistent:    r.Consistent(),
	}
}

// SyncResponse reports the raw balances derived from routes.
type SyncResponse struct {
	Totals map[string]Number `json:"totals"`
	Year   int               `json:"year"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
