package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/geoguard/geoguard/pkg/audit"
	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/identity"
	"github.com/geoguard/geoguard/pkg/invitations"
	"github.com/geoguard/geoguard/pkg/licenses"
	"github.com/geoguard/geoguard/pkg/onboarding"
	"github.com/geoguard/geoguard/pkg/rbac"
	"github.com/geoguard/geoguard/pkg/tenants"
	"github.com/geoguard/geoguard/pkg/users"
)

func newTestEnv(t *testing.T, vars map[string]string) (*Env, *bytes.Buffer, *audit.StoreLogger) {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions, err := identity.NewSessions(store, "0123456789abcdef0123456789abcdef", "geoguard-test", 0)
	require.NoError(t, err)
	tenantRegistry := tenants.NewRegistry(store, users.NewDirectory(store))
	auditLog := audit.NewStoreLogger(store)

	svc, err := onboarding.NewService(onboarding.Deps{
		Licenses:    licenses.NewRegistry(store),
		Tenants:     tenantRegistry,
		Invitations: invitations.NewRegistry(store),
		Users:       users.NewBinder(store, tenantRegistry),
		Identity:    identity.NewLocalProvider(store, bcrypt.MinCost),
		Sessions:    sessions,
		Audit:       auditLog,
		AuditSearch: auditLog,
	})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	out := &bytes.Buffer{}
	return &Env{
		Service:  svc,
		Operator: OperatorPrincipal("tester"),
		Out:      out,
		Logger:   logger,
		Getenv:   func(k string) string { return vars[k] },
	}, out, auditLog
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "geoguard-admin", root.Name)
	for _, name := range []string{"audit", "license", "superadmin", "tenant"} {
		assert.Contains(t, root.Subcommands, name)
	}
	assert.Len(t, root.Subcommands, 4)
}

func TestCommandUsage(t *testing.T) {
	env, out, _ := newTestEnv(t, nil)
	root := NewRootCommand()

	for _, args := range [][]string{nil, {"-h"}, {"--HELP"}, {"help"}} {
		out.Reset()
		require.NoError(t, root.Execute(context.Background(), env, args))
		assert.Contains(t, out.String(), "Usage: geoguard-admin <command> [args]")
		assert.Contains(t, out.String(), "license")
	}

	out.Reset()
	require.NoError(t, root.Execute(context.Background(), env, []string{"license"}))
	assert.Contains(t, out.String(), "issue")
	assert.Contains(t, out.String(), "revoke")

	err := root.Execute(context.Background(), env, []string{"nope"})
	assert.EqualError(t, err, "unknown command: nope")
}

func TestLicenseCommands(t *testing.T) {
	ctx := context.Background()
	env, out, auditLog := newTestEnv(t, nil)
	root := NewRootCommand()

	require.NoError(t, root.Execute(ctx, env, []string{"license", "issue", "--to", "Acme", "--expires-in-days", "30"}))
	key := strings.TrimSpace(out.String())
	assert.Regexp(t, `^GGUARD-\d{4}-[A-Z2-9]{9}$`, key)

	out.Reset()
	require.NoError(t, root.Execute(ctx, env, []string{"license", "validate", "--key", strings.ToLower(key)}))
	assert.Contains(t, out.String(), "is valid")

	out.Reset()
	require.NoError(t, root.Execute(ctx, env, []string{"license", "list", "--json"}))
	var list []licenses.License
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "operator:tester", list[0].IssuedBy)
	assert.Equal(t, "Acme", list[0].IssuedTo)

	require.NoError(t, root.Execute(ctx, env, []string{"license", "revoke", "--id", list[0].ID}))

	out.Reset()
	require.NoError(t, root.Execute(ctx, env, []string{"license", "list"}))
	assert.Contains(t, out.String(), "revoked")

	assert.Error(t, root.Execute(ctx, env, []string{"license", "validate", "--key", key}))
	assert.EqualError(t, root.Execute(ctx, env, []string{"license", "revoke"}), "--id is required")

	trail, err := auditLog.Search(ctx, audit.SearchFilter{ActorID: "operator:tester"})
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestSuperAdminCreate(t *testing.T) {
	ctx := context.Background()
	env, out, _ := newTestEnv(t, map[string]string{DefaultPasswordEnv: "super-secret"})
	root := NewRootCommand()

	require.NoError(t, root.Execute(ctx, env, []string{"superadmin", "create", "--email", "ops@geoguard.io", "--name", "Platform Ops"}))
	fields := strings.Fields(out.String())
	require.Len(t, fields, 3)
	assert.Equal(t, "ops@geoguard.io", fields[1])
	assert.Equal(t, "PO", fields[2])

	user, err := env.Service.GetUser(ctx, env.Operator, fields[0])
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSuperAdmin, user.Role)
	assert.Equal(t, rbac.PlatformTenantID, user.TenantID)

	err = root.Execute(ctx, env, []string{"superadmin", "create", "--email", "x@geoguard.io", "--name", "X", "--password-env", "UNSET"})
	assert.EqualError(t, err, "UNSET is not set")
}

func TestTenantCommands(t *testing.T) {
	ctx := context.Background()
	env, out, _ := newTestEnv(t, nil)
	root := NewRootCommand()

	require.NoError(t, root.Execute(ctx, env, []string{"license", "issue"}))
	key := strings.TrimSpace(out.String())
	result, err := env.Service.RegisterOrganization(ctx, onboarding.RegisterOrganizationRequest{
		LicenseKey:  key,
		CompanyName: "Acme Logistics",
		Email:       "alice@acme.com",
		Password:    "admin-pass",
		Admin: onboarding.PersonDetails{
			FirstName: "Alice", LastName: "Admin", Phone: "+15550100000",
			Address: "1 Main St", City: "Springfield", Country: "USA",
		},
	})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, root.Execute(ctx, env, []string{"tenant", "list"}))
	assert.Contains(t, out.String(), "Acme Logistics")
	assert.Contains(t, out.String(), "true")

	require.NoError(t, root.Execute(ctx, env, []string{"tenant", "deactivate", "--id", result.Tenant.ID}))
	tenant, err := env.Service.GetTenant(ctx, env.Operator, result.Tenant.ID)
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)

	require.NoError(t, root.Execute(ctx, env, []string{"tenant", "reactivate", "--id", result.Tenant.ID}))
	tenant, err = env.Service.GetTenant(ctx, env.Operator, result.Tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.IsActive)
}

func TestAuditExport(t *testing.T) {
	ctx := context.Background()
	env, out, _ := newTestEnv(t, nil)
	root := NewRootCommand()

	require.NoError(t, root.Execute(ctx, env, []string{"license", "issue", "--to", "Acme"}))
	out.Reset()

	require.NoError(t, root.Execute(ctx, env, []string{"audit", "export", "--format", "csv"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,event_type"))
	assert.Contains(t, out.String(), "operator:tester")

	err := root.Execute(ctx, env, []string{"audit", "export", "--format", "xml"})
	assert.Error(t, err)
	assert.Error(t, root.Execute(ctx, env, []string{"audit", "export", "--limit", "0"}))
}
