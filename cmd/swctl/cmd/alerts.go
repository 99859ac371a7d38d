package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	alertsLimit int
	ackBy       string
	snoozeFor   time.Duration
)

// alertView mirrors the server's alert payload.
type alertView struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Severity     string  `json:"severity"`
	TriggeredBy  string  `json:"triggered_by"`
	TriggerValue float64 `json:"trigger_value"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

// alertsCmd represents the alerts command group
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Alert backlog commands",
	Long: `Commands for working through raised alerts.

Examples:
  # List alerts
  swctl alerts list --org org-1

  # Acknowledge and later resolve
  swctl alerts ack a1b2c3 --by ops@example.com
  swctl alerts resolve a1b2c3

  # Silence a flapping alert for two hours
  swctl alerts snooze a1b2c3 --for 2h`,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOrg(); err != nil {
			return err
		}
		client := newClient()

		var alerts []alertView
		path := fmt.Sprintf("/api/v1/alerts?organization_id=%s&limit=%d", orgID, alertsLimit)
		if err := client.get(path, &alerts); err != nil {
			return err
		}

		if GetOutput() == "json" {
			printJSON(alerts)
			return nil
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-9s  %-13s  %-45s  %s\n",
			"ID", "SEVERITY", "STATUS", "TITLE", "TRIGGER")
		fmt.Println(strings.Repeat("-", 120))
		for _, a := range alerts {
			title := a.Title
			if len(title) > 45 {
				title = title[:42] + "..."
			}
			fmt.Printf("%-36s  %-9s  %-13s  %-45s  %s=%.1f\n",
				a.ID, a.Severity, a.Status, title, a.TriggeredBy, a.TriggerValue)
		}
		fmt.Printf("\nTotal: %d alert(s)\n", len(alerts))
		return nil
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ackBy == "" {
			return fmt.Errorf("--by is required")
		}
		client := newClient()

		body := map[string]string{"acknowledged_by": ackBy}
		if err := client.post("/api/v1/alerts/"+args[0]+"/acknowledge", body, nil); err != nil {
			return err
		}
		fmt.Printf("alert %s acknowledged by %s\n", args[0], ackBy)
		return nil
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		if err := client.post("/api/v1/alerts/"+args[0]+"/resolve", nil, nil); err != nil {
			return err
		}
		fmt.Printf("alert %s resolved\n", args[0])
		return nil
	},
}

var alertsSnoozeCmd = &cobra.Command{
	Use:   "snooze <alert-id>",
	Short: "Silence an alert for a while",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]string{"duration": snoozeFor.String()}
		if err := client.post("/api/v1/alerts/"+args[0]+"/snooze", body, nil); err != nil {
			return err
		}
		fmt.Printf("alert %s snoozed for %s\n", args[0], snoozeFor)
		return nil
	},
}

func init() {
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 50, "maximum alerts to list")
	alertsAckCmd.Flags().StringVar(&ackBy, "by", "", "who is acknowledging")
	alertsSnoozeCmd.Flags().DurationVar(&snoozeFor, "for", time.Hour, "snooze duration")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
	alertsCmd.AddCommand(alertsSnoozeCmd)
	rootCmd.AddCommand(alertsCmd)
}
