package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/turtacn/tenantjwt/internal/domain/models"
)

// auditFilter selects rows of the audit trail.
type auditFilter struct {
	ClientID     string
	Username     string
	Since        time.Duration
	FailuresOnly bool
	Limit        int
}

func newAuditCommand() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail stored in the database",
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print recent audit events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f auditFilter
			f.ClientID, _ = cmd.Flags().GetString("client-id")
			f.Username, _ = cmd.Flags().GetString("username")
			f.Since, _ = cmd.Flags().GetDuration("since")
			f.FailuresOnly, _ = cmd.Flags().GetBool("failures")
			f.Limit, _ = cmd.Flags().GetInt("limit")

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := queryAudit(cmd.Context(), db.Gorm(), f)
			if err != nil {
				return err
			}
			printAudit(cmd, events)
			return nil
		},
	}
	reportCmd.Flags().String("client-id", "", "only events of this tenant")
	reportCmd.Flags().String("username", "", "only events of this user")
	reportCmd.Flags().Duration("since", 24*time.Hour, "how far back to look, 0 for no bound")
	reportCmd.Flags().Bool("failures", false, "only failed operations")
	reportCmd.Flags().Int("limit", 100, "maximum number of events")

	auditCmd.AddCommand(reportCmd)
	return auditCmd
}

func queryAudit(ctx context.Context, db *gorm.DB, f auditFilter) ([]models.AuditEvent, error) {
	q := db.WithContext(ctx).Model(&models.AuditEvent{})
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Username != "" {
		q = q.Where("username = ?", f.Username)
	}
	if f.Since > 0 {
		q = q.Where("timestamp >= ?", time.Now().UTC().Add(-f.Since))
	}
	if f.FailuresOnly {
		q = q.Where("success = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var events []models.AuditEvent
	if err := q.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	return events, nil
}

func printAudit(cmd *cobra.Command, events []models.AuditEvent) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tCLIENT\tUSER\tSUCCESS\tREASON")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", e.Timestamp.Format(time.RFC3339), e.EventType,
			e.ClientID, e.Username, e.Success, e.Reason)
	}
	_ = w.Flush()
}
