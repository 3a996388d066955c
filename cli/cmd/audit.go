package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/muhammetozeski/TPMPass/audit"
)

var (
	auditJsonOutput    bool
	auditSince         string
	auditUntil         string
	auditAction        string
	auditSuccessFilter string
	auditPath          string
	auditLimit         int
	auditOffset        int
	auditFailuresOnly  bool
	auditIdentityOnly  bool
	auditDetails       bool
)

var auditCmd = &cobra.Command{
	Use:     "log",
	Aliases: []string{"audit"},
	Short:   "Query the audit trail",
	Long: `Query the audit trail kept in the data directory.

Examples:
  # Recent events
  tpmpass log

  # Failed decryptions in the last day
  tpmpass log --action DECRYPT_FILE --failures-only --since "$(date -d '24 hours ago' -Iseconds)"

  # Master identity lifecycle
  tpmpass log --identity`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipVault: "true"},
	RunE:        runAuditQuery,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	f := auditCmd.Flags()
	f.BoolVar(&auditJsonOutput, "json", false, "output events as JSON")
	f.StringVar(&auditSince, "since", "", "only events at or after this RFC 3339 time")
	f.StringVar(&auditUntil, "until", "", "only events at or before this RFC 3339 time")
	f.StringVar(&auditAction, "action", "", "only events with this action")
	f.StringVar(&auditSuccessFilter, "success", "", "filter by outcome (true or false)")
	f.StringVar(&auditPath, "path", "", "only events for this secret file")
	f.IntVar(&auditLimit, "limit", 50, "maximum number of events")
	f.IntVar(&auditOffset, "offset", 0, "skip this many events")
	f.BoolVar(&auditFailuresOnly, "failures-only", false, "only failed operations")
	f.BoolVar(&auditIdentityOnly, "identity", false, "only master identity events")
	f.BoolVar(&auditDetails, "details", false, "show every field of each event")
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	options, err := buildQueryOptions()
	if err != nil {
		return err
	}

	dir, err := resolveDataDir()
	if err != nil {
		return err
	}
	cfg := auditConfig(dir)
	if cfg.Type == audit.FileAuditType && !fileExists(cfg.Options["file_path"].(string)) {
		fmt.Println("No audit events found.")
		return nil
	}

	trail, err := audit.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer trail.Close()

	result, err := trail.Query(options)
	if err != nil {
		return fmt.Errorf("failed to query audit trail: %w", err)
	}

	if auditJsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if err = displayAuditEvents(result.Events); err != nil {
		return err
	}
	if result.HasMore {
		fmt.Printf("\nShowing %d of %d matching events (use --limit/--offset)\n", len(result.Events), result.Filtered)
	}
	return nil
}

func buildQueryOptions() (audit.QueryOptions, error) {
	options := audit.QueryOptions{
		Limit:          auditLimit,
		Offset:         auditOffset,
		Action:         auditAction,
		Path:           auditPath,
		IdentityEvents: auditIdentityOnly,
	}

	if auditSince != "" {
		parsedTime, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return options, fmt.Errorf("invalid since time format: %w", err)
		}
		options.Since = &parsedTime
	}

	if auditUntil != "" {
		parsedTime, err := time.Parse(time.RFC3339, auditUntil)
		if err != nil {
			return options, fmt.Errorf("invalid until time format: %w", err)
		}
		options.Until = &parsedTime
	}

	if auditSuccessFilter != "" {
		success, err := strconv.ParseBool(auditSuccessFilter)
		if err != nil {
			return options, fmt.Errorf("invalid success filter format: %w", err)
		}
		options.Success = &success
	}

	if auditFailuresOnly {
		falseVal := false
		options.Success = &falseVal
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
			fmt.Fprintf(w, "Timestamp:\t%s\n", event.Timestamp.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "Action:\t%s\n", event.Action)
			fmt.Fprintf(w, "Status:\t%s\n", statusLabel(event.Success))

			if event.Error != "" {
				fmt.Fprintf(w, "Error:\t%s\n", event.Error)
			}
			if event.Path != "" {
				fmt.Fprintf(w, "Path:\t%s\n", event.Path)
			}
			if event.UserID != "" {
				fmt.Fprintf(w, "User ID:\t%s\n", event.UserID)
			}
			if event.Source != "" {
				fmt.Fprintf(w, "Source:\t%s\n", event.Source)
			}
			if event.Duration > 0 {
				fmt.Fprintf(w, "Duration:\t%dms\n", event.Duration)
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

	fmt.Fprintf(w, "TIMESTAMP\tACTION\tSTATUS\tPATH\tERROR\n")
	for _, event := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Local().Format("2006-01-02 15:04:05"),
			event.Action,
			statusLabel(event.Success),
			truncate(event.Path, 40),
			truncate(event.Error, 40))
	}
	return w.Flush()
}

func statusLabel(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "FAILED"
}
