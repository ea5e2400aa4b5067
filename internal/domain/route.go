package domain

import (
	"github.com/shopspring/decimal"
)

// FuelEU constants used to derive a raw compliance balance from a route.
const (
	// TargetIntensity2025 is the 2025-2029 GHG intensity target in gCO2e/MJ
	// (2% below the 91.16 reference value).
	TargetIntensity2025 = 89.3368
	// EnergyPerTonne is the energy content assumed per tonne of fuel, in MJ.
	EnergyPerTonne = 41000.0
)

// Route is an upstream per-voyage record with already computed intensity.
type Route struct {
	RouteID         string
	ShipID          string
	VesselType      string
	FuelType        string
	Year            int
	GHGIntensity    float64 // gCO2e/MJ
	FuelConsumption float64 // t
	Distance        float64 // km
	TotalEmissions  float64 // t
	IsBaseline      bool
}

// Owner returns the ship the route is accounted to.
func (r *Route) Owner() string {
	if r.ShipID != "" {
		return r.ShipID
	}

	return r.RouteID
}

// ComplianceBalance derives the raw CB contribution of the route in gCO2e.
func (r *Route) ComplianceBalance() (decimal.Decimal, error) {
	energy := r.FuelConsumption * EnergyPerTonne
	return DecimalFromFloat((TargetIntensity2025 - r.GHGIntensity) * energy)
}

// RouteFilter narrows route listings. Zero values match everything.
type RouteFilter struct {
	VesselType string
	FuelType   string
	Year       int
}

// Matches reports whether the route passes the filter.
func (f RouteFilter) Matches(r *Route) bool {
	if f.VesselType != "" && f.VesselType != r.VesselType {
		return false
	}

	if f.FuelType != "" && f.FuelType != r.FuelType {
		return false
	}

	return f.Year == 0 || f.Year == r.Year
}

// ComparisonRow compares a route against the year's baseline.
type ComparisonRow struct {
	RouteID       string
	BaselineGHG   float64
	ComparisonGHG float64
	PercentDiff   float64
	Compliant     bool
}

// Compare builds a comparison row of route against baseline.
func Compare(baseline, route *Route) ComparisonRow {
	row := ComparisonRow{
		RouteID:       route.RouteID,
		BaselineGHG:   baseline.GHGIntensity,
		ComparisonGHG: route.GHGIntensity,
		Compliant:     route.GHGIntensity <= TargetIntensity2025,
	}

	if baseline.GHGIntensity != 0 {
		row.PercentDiff = (route.GHGIntensity/baseline.GHGIntensity - 1) * 100
	}

	return row
}
