package cli

import (
	"context"
	"fmt"

	"github.com/geoguard/geoguard/pkg/onboarding"
)

// DefaultPasswordEnv names the variable read for the new super admin's password
const DefaultPasswordEnv = "GEOGUARD_SUPERADMIN_PASSWORD"

func newSuperAdminCommand() *Command {
	return &Command{
		Name:        "superadmin",
		Description: "Provision platform operator accounts",
		Subcommands: map[string]*Command{
			"create": {Name: "create", Description: "Create a super admin account", Run: runSuperAdminCreate},
		},
	}
}

func runSuperAdminCreate(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("superadmin create", env.Out)
	email := flags.String("email", "", "Account email")
	name := flags.String("name", "", "Full name")
	phone := flags.String("phone", "", "Phone number")
	passwordEnv := flags.String("password-env", DefaultPasswordEnv, "Environment variable holding the password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// passwords never go on the command line
	password := env.Getenv(*passwordEnv)
	if password == "" {
		return fmt.Errorf("%s is not set", *passwordEnv)
	}

	user, err := env.Service.CreateSuperAdmin(ctx, onboarding.SuperAdminRequest{
		Email:    *email,
		Password: password,
		FullName: *name,
		Phone:    *phone,
	})
	if err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}
	env.Logger.WithField("user_id", user.ID).Info("super admin created")
	fmt.Fprintf(env.Out, "%s\t%s\t%s\n", user.ID, user.Email, user.Initials)
	return nil
}
