package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/geoguard/geoguard/pkg/audit"
)

func newAuditCommand() *Command {
	return &Command{
		Name:        "audit",
		Description: "Read the audit trail",
		Subcommands: map[string]*Command{
			"export": {Name: "export", Description: "Write audit events as json, ndjson or csv", Run: runAuditExport},
		},
	}
}

func runAuditExport(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("audit export", env.Out)
	tenantID := flags.String("tenant", "", "Only events of this company")
	format := flags.String("format", "ndjson", "json, ndjson or csv")
	since := flags.Duration("since", 24*time.Hour, "How far back to read")
	limit := flags.Int("limit", 1000, "Maximum number of events")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *limit < 1 {
		return fmt.Errorf("--limit must be positive")
	}

	start := time.Now().Add(-*since)
	events, err := env.Service.AuditTrail(ctx, env.Operator, audit.SearchFilter{
		TenantID:  *tenantID,
		StartTime: &start,
		Limit:     *limit,
	})
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}
	return audit.Export(env.Out, events, audit.ExportFormat(*format))
}
