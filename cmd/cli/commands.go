package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/cbledger/internal/adapter/http/dto"
)

func cbCmd(opts *clientOptions) *cobra.Command {
	var (
		year   int
		shipID string
	)

	cmd := &cobra.Command{
		Use:   "cb",
		Short: "Show the compliance balance of a ship, or of the fleet without --ship",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{"year": {strconv.Itoa(year)}}
			if shipID != "" {
				q.Set("shipId", shipID)
			}

			var resp dto.CBResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/compliance/cb?"+q.Encode(), nil, &resp); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Compliance year")
	cmd.Flags().StringVar(&shipID, "ship", "", "Ship ID")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

func adjustedCmd(opts *clientOptions) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "adjusted",
		Short: "List adjusted compliance balances for a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var members []dto.PoolMemberResponse
			path := "/compliance/adjusted-cb?year=" + strconv.Itoa(year)
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, &members); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range members {
				line := fmt.Sprintf("%-12s %s", m.ShipID, m.AdjustedCBBefore.Decimal())
				if m.AdjustedCBAfter != nil {
					line += " -> " + m.AdjustedCBAfter.Decimal().String()
				}
				fmt.Fprintln(out, line)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Compliance year")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}

func bankCmd(opts *clientOptions) *cobra.Command {
	return bankingCmd(opts, "bank", "Bank surplus for later years", "/banking/bank")
}

func applyCmd(opts *clientOptions) *cobra.Command {
	return bankingCmd(opts, "apply", "Apply banked credit to the current balance", "/banking/apply")
}

func bankingCmd(opts *clientOptions, use, short, path string) *cobra.Command {
	var (
		year   int
		shipID string
		amount string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			var kpis dto.BankingKPIsResponse
			req := dto.BankingRequest{ShipID: shipID, Year: year, Amount: value}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, path, req, &kpis); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), kpis)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Compliance year")
	cmd.Flags().StringVar(&shipID, "ship", "", "Ship ID")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in gCO2e")
	for _, name := range []string{"year", "ship", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func poolCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Pool operations",
	}

	var year int

	createCmd := &cobra.Command{
		Use:   "create SHIP[=BEFORE]...",
		Short: "Create a pool; BEFORE pins the balance the proposal is based on",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parsePoolMembers(year, args)
			if err != nil {
				return err
			}

			var pool dto.PoolResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/pools", req, &pool); err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), pool)
		},
	}

	createCmd.Flags().IntVar(&year, "year", 0, "Compliance year")
	_ = createCmd.MarkFlagRequired("year")

	cmd.AddCommand(createCmd)

	return cmd
}

func parsePoolMembers(year int, args []string) (dto.CreatePoolRequest, error) {
	req := dto.CreatePoolRequest{Year: year, Members: make([]dto.PoolMemberRequest, 0, len(args))}

	for _, arg := range args {
		shipID, before, pinned := strings.Cut(arg, "=")
		member := dto.PoolMemberRequest{ShipID: shipID}

		if pinned {
			value, err := decimal.NewFromString(before)
			if err != nil {
				return req, fmt.Errorf("invalid balance for %s: %w", shipID, err)
			}
			member.AdjustedCBBefore = &value
		}

		req.Members = append(req.Members, member)
	}

	return req, nil
}

func reconcileCmd(opts *clientOptions) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check ledger consistency for a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report dto.ReconciliationResponse
			path := "/compliance/reconcile?year=" + strconv.Itoa(year)
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, &report); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Consistent {
				fmt.Fprintf(out, "Consistency check PASSED (%d records, %d pools)\n", report.Records, report.Pools)
				return nil
			}

			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "%s: %s\n", d.Subject, d.Detail)
			}

			return fmt.Errorf("consistency check FAILED: %d discrepancies", len(report.Discrepancies))
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Compliance year")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}
