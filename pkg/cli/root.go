package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/geoguard/geoguard/pkg/onboarding"
	"github.com/geoguard/geoguard/pkg/rbac"
)

// Env is what commands act on
type Env struct {
	Service *onboarding.Service
	// Operator is the principal recorded as the actor of every change
	Operator rbac.Principal
	Out      io.Writer
	Logger   logrus.FieldLogger
	// Getenv reads secrets such as the super admin password; defaults to os.Getenv
	Getenv func(string) string
}

// OperatorPrincipal returns the super admin principal used for CLI actions
func OperatorPrincipal(name string) rbac.Principal {
	if name == "" {
		name = "cli"
	}
	return rbac.Principal{
		UserID:   "operator:" + name,
		TenantID: rbac.PlatformTenantID,
		Role:     rbac.RoleSuperAdmin,
		IsActive: true,
	}
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env, args []string) error
	Subcommands map[string]*Command
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "geoguard-admin",
		Description: "GeoGuard platform operator tool",
		Subcommands: make(map[string]*Command),
	}

	root.Subcommands["audit"] = newAuditCommand()
	root.Subcommands["license"] = newLicenseCommand()
	root.Subcommands["superadmin"] = newSuperAdminCommand()
	root.Subcommands["tenant"] = newTenantCommand()

	return root
}

// Execute dispatches args to the matching subcommand
func (c *Command) Execute(ctx context.Context, env *Env, args []string) error {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Getenv == nil {
		env.Getenv = os.Getenv
	}
	if env.Logger == nil {
		env.Logger = logrus.StandardLogger()
	}

	if len(args) == 0 || isHelp(args[0]) {
		return c.usage(env.Out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		if subcmd.Run != nil {
			return subcmd.Run(ctx, env, args[1:])
		}
		return subcmd.Execute(ctx, env, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func isHelp(arg string) bool {
	switch strings.ToLower(arg) {
	case "-h", "--help", "help":
		return true
	}
	return false
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	return flags
}
