package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iho/cbledger/internal/adapter/http/dto"
)

// routeSeed is one route in a YAML seed file.
type routeSeed struct {
	RouteID         string  `yaml:"route_id"`
	ShipID          string  `yaml:"ship_id"`
	VesselType      string  `yaml:"vessel_type"`
	FuelType        string  `yaml:"fuel_type"`
	Year            int     `yaml:"year"`
	GHGIntensity    float64 `yaml:"ghg_intensity"`
	FuelConsumption float64 `yaml:"fuel_consumption"`
	Distance        float64 `yaml:"distance"`
	TotalEmissions  float64 `yaml:"total_emissions"`
}

type routeSeedFile struct {
	Routes []routeSeed `yaml:"routes"`
}

// loadRouteSeeds reads a YAML seed file into API requests.
func loadRouteSeeds(path string) ([]dto.RouteRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var file routeSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("seed file %s has no routes", path)
	}

	routes := make([]dto.RouteRequest, len(file.Routes))
	for i, s := range file.Routes {
		routes[i] = dto.RouteRequest{
			RouteID:         s.RouteID,
			ShipID:          s.ShipID,
			VesselType:      s.VesselType,
			FuelType:        s.FuelType,
			Year:            s.Year,
			GHGIntensity:    s.GHGIntensity,
			FuelConsumption: s.FuelConsumption,
			Distance:        s.Distance,
			TotalEmissions:  s.TotalEmissions,
		}
	}

	return routes, nil
}

func routesCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Route operations",
	}

	var syncYears []int

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import routes from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := loadRouteSeeds(args[0])
			if err != nil {
				return err
			}

			client := newAPIClient(opts)
			if err := client.do(cmd.Context(), http.MethodPost, "/routes", routes, nil); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d routes\n", len(routes))

			for _, year := range syncYears {
				var resp dto.SyncResponse
				if err := client.do(cmd.Context(), http.MethodPost, fmt.Sprintf("/compliance/sync?year=%d", year), nil, &resp); err != nil {
					return err
				}
				fmt.Fprintf(out, "synced %d ships for %d\n", len(resp.Totals), year)
			}

			return nil
		},
	}

	importCmd.Flags().IntSliceVar(&syncYears, "sync", nil, "Derive raw balances for these years after importing")

	cmd.AddCommand(importCmd)

	return cmd
}
