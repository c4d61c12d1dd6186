package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/geoguard/geoguard/pkg/licenses"
)

func newLicenseCommand() *Command {
	return &Command{
		Name:        "license",
		Description: "Issue, revoke and list license keys",
		Subcommands: map[string]*Command{
			"issue":    {Name: "issue", Description: "Issue a new license key", Run: runLicenseIssue},
			"revoke":   {Name: "revoke", Description: "Revoke an unused license", Run: runLicenseRevoke},
			"list":     {Name: "list", Description: "List all licenses", Run: runLicenseList},
			"validate": {Name: "validate", Description: "Check a key without consuming it", Run: runLicenseValidate},
		},
	}
}

func runLicenseIssue(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("license issue", env.Out)
	issuedTo := flags.String("to", "", "Customer the key is issued to")
	days := flags.Int("expires-in-days", 0, "Days until the key expires (0 = never)")
	notes := flags.String("notes", "", "Free-form notes")
	asJSON := flags.Bool("json", false, "Print the license as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	license, err := env.Service.IssueLicense(ctx, env.Operator, licenses.IssueRequest{
		IssuedTo:      *issuedTo,
		ExpiresInDays: *days,
		Notes:         *notes,
	})
	if err != nil {
		return fmt.Errorf("failed to issue license: %w", err)
	}
	env.Logger.WithField("license_id", license.ID).Info("license issued")

	if *asJSON {
		return printJSON(env, license)
	}
	fmt.Fprintln(env.Out, license.LicenseKey)
	return nil
}

func runLicenseRevoke(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("license revoke", env.Out)
	id := flags.String("id", "", "License ID")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	if err := env.Service.RevokeLicense(ctx, env.Operator, *id); err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}
	env.Logger.WithField("license_id", *id).Info("license revoked")
	return nil
}

func runLicenseList(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("license list", env.Out)
	asJSON := flags.Bool("json", false, "Print licenses as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	list, err := env.Service.ListLicenses(ctx, env.Operator)
	if err != nil {
		return fmt.Errorf("failed to list licenses: %w", err)
	}
	if *asJSON {
		return printJSON(env, list)
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEY\tSTATUS\tISSUED TO\tEXPIRES")
	for _, l := range list {
		expires := "never"
		if l.ExpiresAt != nil {
			expires = l.ExpiresAt.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.LicenseKey, licenseStatus(l), l.IssuedTo, expires)
	}
	return w.Flush()
}

func runLicenseValidate(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("license validate", env.Out)
	key := flags.String("key", "", "License key")
	if err := flags.Parse(args); err != nil {
		return err
	}

	license, err := env.Service.ValidateLicense(ctx, *key)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s is valid\n", license.LicenseKey)
	return nil
}

func licenseStatus(l *licenses.License) string {
	switch {
	case l.IsUsed:
		return "used"
	case !l.IsActive:
		return "revoked"
	case l.IsExpired(time.Now()):
		return "expired"
	}
	return "available"
}

func printJSON(env *Env, v interface{}) error {
	enc := json.NewEncoder(env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
