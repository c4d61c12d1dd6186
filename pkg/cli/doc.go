// Package cli implements geoguard-admin, the platform operator tool.
//
// Every command runs as a super admin principal against the same store the
// server uses, so changes are audited like API calls.
//
// # Commands
//
// license: manage license keys
//
//	geoguard-admin license issue --to "Acme Logistics" --expires-in-days 30
//	geoguard-admin license list --json
//	geoguard-admin license revoke --id 6f1c...
//	geoguard-admin license validate --key GGUARD-2026-ABCDEFGHJ
//
// superadmin: provision operator accounts
//
//	GEOGUARD_SUPERADMIN_PASSWORD=... geoguard-admin superadmin create \
//		--email ops@geoguard.io --name "Platform Ops"
//
// tenant: list and (de)activate companies
//
//	geoguard-admin tenant list
//	geoguard-admin tenant deactivate --id 3a9e...
//
// audit: export the trail
//
//	geoguard-admin audit export --tenant 3a9e... --since 168h --format csv
//
// # Configuration
//
// The store and secrets are read with the server's configuration loader
// (GEOGUARD_* variables, .env and GEOGUARD_CONFIG_FILE).
package cli
