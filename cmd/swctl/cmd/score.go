package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scoreIntegration string

// scoreCmd represents the score command group
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Accuracy score commands",
	Long: `Commands for score history and trend analysis.

Examples:
  swctl score trend --org org-1
  swctl score trend --org org-1 --integration int-7`,
}

var scoreTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the score trend",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOrg(); err != nil {
			return err
		}
		client := newClient()

		var trend struct {
			Trend      string  `json:"trend"`
			Slope      float64 `json:"slope"`
			ChangeRate float64 `json:"change_rate"`
			Volatility float64 `json:"volatility"`
			Forecast   float64 `json:"forecast"`
			Samples    int     `json:"samples"`
			Benchmark  struct {
				Score      float64 `json:"score"`
				Percentile float64 `json:"percentile"`
			} `json:"benchmark"`
		}
		path := "/api/v1/scores/trend?organization_id=" + orgID
		if scoreIntegration != "" {
			path += "&integration_id=" + scoreIntegration
		}
		if err := client.get(path, &trend); err != nil {
			return err
		}

		if GetOutput() == "json" {
			printJSON(trend)
			return nil
		}
		fmt.Printf("Trend:      %s\n", trend.Trend)
		fmt.Printf("Slope:      %+.3f per check\n", trend.Slope)
		fmt.Printf("Volatility: %.3f\n", trend.Volatility)
		fmt.Printf("Forecast:   %.2f\n", trend.Forecast)
		fmt.Printf("Samples:    %d\n", trend.Samples)
		fmt.Printf("Percentile: %.1f\n", trend.Benchmark.Percentile)
		return nil
	},
}

func init() {
	scoreCmd.PersistentFlags().StringVar(&scoreIntegration, "integration", "", "restrict to one integration")

	scoreCmd.AddCommand(scoreTrendCmd)
	rootCmd.AddCommand(scoreCmd)
}
