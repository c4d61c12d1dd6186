package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
)

func newTenantCommand() *Command {
	return &Command{
		Name:        "tenant",
		Description: "List and (de)activate companies",
		Subcommands: map[string]*Command{
			"list":       {Name: "list", Description: "List all companies", Run: runTenantList},
			"deactivate": {Name: "deactivate", Description: "Lock a company's users out", Run: runTenantSetActive(false)},
			"reactivate": {Name: "reactivate", Description: "Restore a deactivated company", Run: runTenantSetActive(true)},
		},
	}
}

func runTenantList(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("tenant list", env.Out)
	asJSON := flags.Bool("json", false, "Print companies as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	list, err := env.Service.ListTenants(ctx, env.Operator)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}
	if *asJSON {
		return printJSON(env, list)
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tTIER\tMAX USERS\tACTIVE")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
			t.ID, t.Name, t.Domain, t.SubscriptionTier, t.MaxUsers, t.IsActive)
	}
	return w.Flush()
}

func runTenantSetActive(active bool) func(ctx context.Context, env *Env, args []string) error {
	return func(ctx context.Context, env *Env, args []string) error {
		flags := newFlagSet("tenant", env.Out)
		id := flags.String("id", "", "Company ID")
		if err := flags.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("--id is required")
		}

		if err := env.Service.SetTenantActive(ctx, env.Operator, *id, active); err != nil {
			return err
		}
		env.Logger.WithField("tenant_id", *id).WithField("active", active).Info("company status changed")
		return nil
	}
}
