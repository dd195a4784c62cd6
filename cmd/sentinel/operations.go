package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/spf13/cobra"
)

// Operations commands
var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "Inspect recorded remediation operations",
}

var operationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded operations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		applianceID, _ := cmd.Flags().GetString("appliance")
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("size", strconv.Itoa(size))
		if applianceID != "" {
			query.Set("applianceId", applianceID)
		}

		var result storage.OperationPage
		if err := getJSON(cmd.Context(), server, "/api/v1/operations?"+query.Encode(), &result); err != nil {
			return err
		}

		if len(result.Content) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No operations found")
			return nil
		}

		printOperations(cmd.OutOrStdout(), result.Content)
		fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d operations)\n", result.Page+1, result.TotalPages, result.TotalElements)
		return nil
	},
}

var operationsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one recorded operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid operation id %q", args[0])
		}

		var op types.Operation
		if err := getJSON(cmd.Context(), server, "/api/v1/operations/"+args[0], &op); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:           %d\n", op.ID)
		fmt.Fprintf(out, "Appliance:    %s\n", op.ApplianceID)
		fmt.Fprintf(out, "Type:         %s\n", op.OperationType)
		fmt.Fprintf(out, "Processed At: %s\n", op.ProcessedAt.Format(time.RFC3339))
		switch op.OperationType {
		case types.OperationTypeDrain:
			fmt.Fprintf(out, "Drain ID:     %s\n", op.DrainID)
			fmt.Fprintf(out, "Drain ETA:    %s\n", op.EstimatedTimeToDrain)
		case types.OperationTypeRemediate:
			fmt.Fprintf(out, "Remediation:  %s\n", op.RemediationID)
			fmt.Fprintf(out, "Result:       %s\n", op.RemediationResult)
		}
		return nil
	},
}

// Queue commands
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the remediation queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show remediation queue occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		var stats metrics.QueueStats
		if err := getJSON(cmd.Context(), server, "/api/v1/queue", &stats); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backlog:  %d / %d\n", stats.Backlog, stats.Capacity)
		fmt.Fprintf(out, "Claimed:  %d\n", stats.Pending)
		fmt.Fprintf(out, "Running:  %d\n", stats.Pending-stats.Backlog)
		return nil
	},
}

// Config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with configuration files",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration is valid (inventory %s, storage %s, %d workers)\n",
			cfg.API.BaseURL, cfg.Storage.Driver, cfg.Processing.WorkerPoolSize)
		return nil
	},
}

func init() {
	operationsCmd.AddCommand(operationsListCmd)
	operationsCmd.AddCommand(operationsGetCmd)
	queueCmd.AddCommand(queueStatsCmd)
	configCmd.AddCommand(configValidateCmd)

	for _, cmd := range []*cobra.Command{operationsCmd, queueCmd} {
		cmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "Sentinel HTTP API address")
	}

	operationsListCmd.Flags().String("appliance", "", "Only show operations for this appliance")
	operationsListCmd.Flags().Int("page", 0, "Page number, starting at 0")
	operationsListCmd.Flags().Int("size", storage.DefaultPageSize, "Page size (max 100)")
}

func printOperations(w io.Writer, ops []*types.Operation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPPLIANCE\tTYPE\tPROCESSED\tDETAIL")
	for _, op := range ops {
		detail := ""
		switch op.OperationType {
		case types.OperationTypeDrain:
			detail = fmt.Sprintf("drain=%s eta=%s", op.DrainID, op.EstimatedTimeToDrain)
		case types.OperationTypeRemediate:
			detail = fmt.Sprintf("remediation=%s result=%s", op.RemediationID, op.RemediationResult)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			op.ID, op.ApplianceID, op.OperationType, op.ProcessedAt.Format(time.RFC3339), detail)
	}
	tw.Flush()
}

// getJSON fetches path from the sentinel API and decodes the response into out
func getJSON(ctx context.Context, server, path string, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach sentinel at %s: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
