package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	checkScope       string
	checkIntegration string
	checkSampleSize  int
	checkWait        bool
	checkLimit       int
)

// checkView mirrors the server's check response.
type checkView struct {
	ID                 string   `json:"id"`
	OrganizationID     string   `json:"organization_id"`
	Scope              string   `json:"scope"`
	IntegrationID      string   `json:"integration_id"`
	Status             string   `json:"status"`
	AccuracyScore      *float64 `json:"accuracy_score"`
	DiscrepanciesFound int      `json:"discrepancies_found"`
	RecordsChecked     int      `json:"records_checked"`
	ErrorMessage       string   `json:"error_message"`
	StartedAt          string   `json:"started_at"`
	CompletedAt        string   `json:"completed_at"`
	DurationMs         int64    `json:"duration_ms"`
}

// checkCmd represents the check command group
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Accuracy scan commands",
	Long: `Commands for running and inspecting accuracy scans.

Examples:
  # Run a full scan and wait for the result
  swctl check run --org org-1 --wait

  # Run a pricing-only scan against one integration
  swctl check run --org org-1 --scope pricing --integration int-7

  # Show recent scans
  swctl check list --org org-1`,
}

var checkRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an accuracy scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOrg(); err != nil {
			return err
		}
		client := newClient()

		var started struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		body := map[string]any{
			"organization_id": orgID,
			"scope":           checkScope,
			"integration_id":  checkIntegration,
			"sample_size":     checkSampleSize,
		}
		if err := client.post("/api/v1/checks", body, &started); err != nil {
			return err
		}

		if !checkWait {
			fmt.Printf("check %s started\n", started.ID)
			return nil
		}

		for {
			time.Sleep(time.Second)
			var check checkView
			if err := client.get("/api/v1/checks/"+started.ID, &check); err != nil {
				return err
			}
			if check.Status == "running" {
				PrintVerbose("still running...")
				continue
			}
			printCheck(&check)
			return nil
		}
	},
}

var checkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOrg(); err != nil {
			return err
		}
		client := newClient()

		var checks []checkView
		path := fmt.Sprintf("/api/v1/checks?organization_id=%s&limit=%d", orgID, checkLimit)
		if err := client.get(path, &checks); err != nil {
			return err
		}

		if GetOutput() == "json" {
			printJSON(checks)
			return nil
		}
		if len(checks) == 0 {
			fmt.Println("No checks found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-10s  %-10s  %8s  %8s  %6s\n",
			"ID", "SCOPE", "STATUS", "SCORE", "RECORDS", "ISSUES")
		fmt.Println(strings.Repeat("-", 90))
		for _, c := range checks {
			score := "-"
			if c.AccuracyScore != nil {
				score = fmt.Sprintf("%.2f", *c.AccuracyScore)
			}
			fmt.Printf("%-36s  %-10s  %-10s  %8s  %8d  %6d\n",
				c.ID, c.Scope, c.Status, score, c.RecordsChecked, c.DiscrepanciesFound)
		}
		fmt.Printf("\nTotal: %d check(s)\n", len(checks))
		return nil
	},
}

var checkStatusCmd = &cobra.Command{
	Use:   "status <check-id>",
	Short: "Show one scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var check checkView
		if err := client.get("/api/v1/checks/"+args[0], &check); err != nil {
			return err
		}
		printCheck(&check)
		return nil
	},
}

var checkAbortCmd = &cobra.Command{
	Use:   "abort <check-id>",
	Short: "Abort an in-flight scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		if err := client.post("/api/v1/checks/"+args[0]+"/abort", nil, nil); err != nil {
			return err
		}
		fmt.Printf("check %s aborting\n", args[0])
		return nil
	},
}

var checkDiscrepanciesCmd = &cobra.Command{
	Use:   "discrepancies <check-id>",
	Short: "List the discrepancies one scan found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var discs []map[string]any
		if err := client.get("/api/v1/checks/"+args[0]+"/discrepancies", &discs); err != nil {
			return err
		}

		if GetOutput() == "json" {
			printJSON(discs)
			return nil
		}
		if len(discs) == 0 {
			fmt.Println("No discrepancies.")
			return nil
		}

		fmt.Printf("\n%-36s  %-10s  %-12s  %-10s  %-10s  %s\n",
			"ID", "ENTITY", "TYPE", "SEVERITY", "STATUS", "FIELD")
		fmt.Println(strings.Repeat("-", 100))
		for _, d := range discs {
			fmt.Printf("%-36s  %-10v  %-12v  %-10v  %-10v  %v\n",
				d["id"], d["entity_type"], d["discrepancy_type"], d["severity"], d["status"], d["field_name"])
		}
		fmt.Printf("\nTotal: %d discrepancy(ies)\n", len(discs))
		return nil
	},
}

func printCheck(c *checkView) {
	if GetOutput() == "json" {
		printJSON(c)
		return
	}
	fmt.Printf("Check:         %s\n", c.ID)
	fmt.Printf("Organization:  %s\n", c.OrganizationID)
	fmt.Printf("Scope:         %s\n", c.Scope)
	if c.IntegrationID != "" {
		fmt.Printf("Integration:   %s\n", c.IntegrationID)
	}
	fmt.Printf("Status:        %s\n", c.Status)
	if c.AccuracyScore != nil {
		fmt.Printf("Score:         %.2f\n", *c.AccuracyScore)
	}
	fmt.Printf("Records:       %d\n", c.RecordsChecked)
	fmt.Printf("Discrepancies: %d\n", c.DiscrepanciesFound)
	if c.DurationMs > 0 {
		fmt.Printf("Duration:      %dms\n", c.DurationMs)
	}
	if c.ErrorMessage != "" {
		fmt.Printf("Error:         %s\n", c.ErrorMessage)
	}
}

func init() {
	checkRunCmd.Flags().StringVar(&checkScope, "scope", "full", "scan scope (full, products, inventory, pricing)")
	checkRunCmd.Flags().StringVar(&checkIntegration, "integration", "", "restrict the scan to one integration")
	checkRunCmd.Flags().IntVar(&checkSampleSize, "sample-size", 0, "records per integration and entity family (0 = server default)")
	checkRunCmd.Flags().BoolVar(&checkWait, "wait", false, "wait for the scan to finish")
	checkListCmd.Flags().IntVar(&checkLimit, "limit", 20, "maximum checks to list")

	checkCmd.AddCommand(checkRunCmd)
	checkCmd.AddCommand(checkListCmd)
	checkCmd.AddCommand(checkStatusCmd)
	checkCmd.AddCommand(checkAbortCmd)
	checkCmd.AddCommand(checkDiscrepanciesCmd)
	rootCmd.AddCommand(checkCmd)
}
