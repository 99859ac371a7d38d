package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ruleView mirrors the server's alert rule payload.
type ruleView struct {
	ID                        string  `json:"id"`
	Name                      string  `json:"name"`
	IsActive                  bool    `json:"is_active"`
	SeverityThreshold         string  `json:"severity_threshold"`
	AccuracyThreshold         float64 `json:"accuracy_threshold"`
	DiscrepancyCountThreshold int     `json:"discrepancy_count_threshold"`
	CheckFrequency            string  `json:"check_frequency"`
	EvaluationWindow          string  `json:"evaluation_window"`
	AutoRemediate             bool    `json:"auto_remediate"`
}

// rulesCmd represents the rules command group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Alert rule commands",
	Long: `Commands for inspecting and toggling alert rules.

Rules are usually managed through the bootstrap rules file or the API;
these commands cover day-to-day operations.

Examples:
  swctl rules list --org org-1
  swctl rules disable r1
  swctl rules enable r1`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOrg(); err != nil {
			return err
		}
		client := newClient()

		var rules []ruleView
		if err := client.get("/api/v1/alert-rules?organization_id="+orgID, &rules); err != nil {
			return err
		}

		if GetOutput() == "json" {
			printJSON(rules)
			return nil
		}
		if len(rules) == 0 {
			fmt.Println("No rules found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-25s  %-7s  %8s  %6s  %-9s  %s\n",
			"ID", "NAME", "ACTIVE", "MIN SCORE", "COUNT", "FREQUENCY", "AUTOFIX")
		fmt.Println(strings.Repeat("-", 110))
		for _, r := range rules {
			fmt.Printf("%-36s  %-25s  %-7t  %8.1f  %6d  %-9s  %t\n",
				r.ID, r.Name, r.IsActive, r.AccuracyThreshold,
				r.DiscrepancyCountThreshold, r.CheckFrequency, r.AutoRemediate)
		}
		fmt.Printf("\nTotal: %d rule(s)\n", len(rules))
		return nil
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(args[0], false) },
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if err := client.delete("/api/v1/alert-rules/" + args[0]); err != nil {
			return err
		}
		fmt.Printf("rule %s deleted\n", args[0])
		return nil
	},
}

func setRuleActive(id string, active bool) error {
	client := newClient()
	body := map[string]bool{"is_active": active}
	if err := client.put("/api/v1/alert-rules/"+id+"/active", body, nil); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Printf("rule %s %s\n", id, state)
	return nil
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rootCmd.AddCommand(rulesCmd)
}
