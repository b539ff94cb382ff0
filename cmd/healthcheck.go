package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lyrics-relay/config"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the admin listener of a running relay",
	Long: `healthcheck exits non-zero unless GET /health on the local admin listener
answers 200. Intended for container health probes in images without a shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if err := runHealthcheck(fmt.Sprintf("http://127.0.0.1:%s/health", port)); err != nil {
			return fmt.Errorf("healthcheck failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "healthy")
		return nil
	},
}

// runHealthcheck performs a health check against the local server
func runHealthcheck(url string) error {
	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}

func defaultAdminPort() string {
	if port := os.Getenv(config.EnvPrefix + "_ADMIN_PORT"); port != "" {
		return port
	}
	return "9090"
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)

	healthcheckCmd.Flags().String("port", defaultAdminPort(), "admin listener port")
}
