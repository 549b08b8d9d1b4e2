package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"southwinds.dev/signet/audit"
)

var (
	auditJSONOutput    bool
	auditSince         string
	auditUntil         string
	auditAction        string
	auditSuccessFilter string
	auditKeyID         string
	auditSecretID      string
	auditLimit         int
	auditOffset        int
	auditDetails       bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query audit logs",
	Long: `Query the audit trail recorded by the vault. Requires a logger
type that retains events (file); syslog delegates retention to the
system journal and cannot be queried here.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events with filters",
	Long: `Query audit events with various filtering options.

Examples:
  # All events for the current tenant
  signet audit query --audit --audit-type file

  # Failed operations in a time range
  signet audit query --success false --since "2026-01-01T00:00:00Z"

  # Operations on a specific key
  signet audit query --key-id "ci/release-signing"`,
	RunE: runAuditQuery,
}

var auditFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show failed operations",
	RunE:  runAuditFailures,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditFailuresCmd)

	auditCmd.PersistentFlags().BoolVar(&auditJSONOutput, "json", false, "output in JSON format")
	auditCmd.PersistentFlags().StringVar(&auditSince, "since", "", "show events since this time (RFC3339)")
	auditCmd.PersistentFlags().StringVar(&auditUntil, "until", "", "show events until this time (RFC3339)")
	auditCmd.PersistentFlags().IntVar(&auditLimit, "limit", 100, "maximum number of events to return")
	auditCmd.PersistentFlags().IntVar(&auditOffset, "offset", 0, "number of events to skip")
	auditCmd.PersistentFlags().BoolVar(&auditDetails, "details", false, "show detailed event information")

	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "filter by action")
	auditQueryCmd.Flags().StringVar(&auditSuccessFilter, "success", "", "filter by success status (true/false)")
	auditQueryCmd.Flags().StringVar(&auditKeyID, "key-id", "", "filter by key identifier")
	auditQueryCmd.Flags().StringVar(&auditSecretID, "secret-id", "", "filter by secret identifier")
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	options, err := buildQueryOptions()
	if err != nil {
		return err
	}

	result, err := connector.QueryAuditLogs(options)
	if err != nil {
		return fmt.Errorf("failed to query audit logs: %w", err)
	}

	if auditJSONOutput {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	return displayAuditEvents(result.Events)
}

func runAuditFailures(cmd *cobra.Command, args []string) error {
	options, err := buildQueryOptions()
	if err != nil {
		return err
	}
	failed := false
	options.Success = &failed

	result, err := connector.QueryAuditLogs(options)
	if err != nil {
		return fmt.Errorf("failed to query audit logs: %w", err)
	}

	if auditJSONOutput {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	fmt.Printf("Failed operations for tenant %s\n", tenantID)
	return displayAuditEvents(result.Events)
}

func buildQueryOptions() (audit.QueryOptions, error) {
	options := audit.QueryOptions{
		TenantID: tenantID,
		Action:   auditAction,
		KeyID:    auditKeyID,
		SecretID: auditSecretID,
		Limit:    auditLimit,
		Offset:   auditOffset,
	}

	if auditSince != "" {
		parsed, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return options, fmt.Errorf("invalid since time format: %w", err)
		}
		options.Since = &parsed
	}
	if auditUntil != "" {
		parsed, err := time.Parse(time.RFC3339, auditUntil)
		if err != nil {
			return options, fmt.Errorf("invalid until time format: %w", err)
		}
		options.Until = &parsed
	}
	if auditSuccessFilter != "" {
		success, err := strconv.ParseBool(auditSuccessFilter)
		if err != nil {
			return options, fmt.Errorf("invalid success filter: %w", err)
		}
		options.Success = &success
	}
	return options, nil
}

func displayAuditEvents(events []audit.Event) error {
	if len(events) == 0 {
		fmt.Println("No audit events found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if auditDetails {
		for _, event := range events {
			fmt.Fprintf(w, "Event ID:\t%s\n", event.ID)
			fmt.Fprintf(w, "Timestamp:\t%s\n", event.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "Tenant:\t%s\n", event.TenantID)
			fmt.Fprintf(w, "Identity:\t%s\n", event.Identity)
			fmt.Fprintf(w, "Action:\t%s\n", event.Action)
			fmt.Fprintf(w, "Status:\t%s\n", eventStatus(event))
			if event.Error != "" {
				fmt.Fprintf(w, "Error:\t%s\n", event.Error)
			}
			if event.KeyID != "" {
				fmt.Fprintf(w, "Key ID:\t%s\n", event.KeyID)
			}
			if event.SecretID != "" {
				fmt.Fprintf(w, "Secret ID:\t%s\n", event.SecretID)
			}
			if len(event.Metadata) > 0 {
				fmt.Fprintf(w, "Metadata:\t")
				for k, v := range event.Metadata {
					fmt.Fprintf(w, "%s=%v ", k, v)
				}
				fmt.Fprintf(w, "\n")
			}
			fmt.Fprintf(w, "────────────────────────────────────────\n")
		}
		return w.Flush()
	}

	fmt.Fprintf(w, "TIMESTAMP\tACTION\tSTATUS\tKEY\tSECRET\tERROR\n")
	for _, event := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.Action,
			eventStatus(event),
			truncate(event.KeyID, 24),
			truncate(event.SecretID, 24),
			truncate(event.Error, 30),
		)
	}
	return w.Flush()
}

func eventStatus(event audit.Event) string {
	if event.Success {
		return "SUCCESS"
	}
	return "FAILED"
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
