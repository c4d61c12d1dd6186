// Package audit records who changed what across tenants.
//
// Every state change made by onboarding (license redemption, tenant
// lifecycle, invitations, role and status edits, sign-in and sign-out) is
// written as an AuditEvent. Events carry the acting user, the tenant and the
// request id pulled from the context.
//
// # Destinations
//
//   - StoreLogger: the audit_events collection of the document store; supports Search and Cleanup
//   - FileLogger: NDJSON on local disk, rolled by size
//   - MultiLogger: synchronous fan-out to several loggers
//
// # Usage Example
//
//	logger := audit.NewMultiLogger(audit.NewStoreLogger(store), fileLogger)
//	_ = audit.LogSuccess(ctx, logger, audit.EventTypeLicenseConsume,
//		audit.ResourceTypeLicense, lic.ID, "license redeemed", nil)
//
//	events, err := storeLogger.Search(ctx, audit.SearchFilter{TenantID: tenantID, Limit: 100})
//	err = audit.Export(w, events, audit.ExportFormatCSV)
//
// # Retention
//
// Default: 365 days. The janitor command calls StoreLogger.Cleanup nightly.
package audit
