// Package docstore provides the document store the GeoGuard registries persist to.
//
// # Overview
//
// Records are schemaless documents grouped into collections (tenants, users,
// invitations, licenses, ...). The Store interface offers exactly what the
// registries need and nothing more:
//
//   - Insert with a generated id, Put with a caller-chosen id
//   - Get by id
//   - Query by equality filters, optionally ordered and limited
//   - Update, an atomic merge of top-level fields into one document
//   - Delete by id
//
// There are no multi-document transactions. Anything that needs cross-document
// consistency is sequenced by the caller.
//
// # Backends
//
//   - MemoryStore: process memory, for tests and ephemeral deployments
//   - FileStore: one JSON file per document under a root directory
//   - SQLiteStore: embedded database using SQLite JSON functions
//   - PostgresStore: one JSONB table; filters are a containment predicate on a GIN index
//
// CachedStore layers an expirable LRU and optional Redis in front of any backend
// for Get. InstrumentedStore adds tracing spans and operation metrics.
//
// # Encoding
//
// Entities are tagged structs. Encode and Decode are the only conversion between
// structs and document fields, so every backend stores the same JSON shape:
//
//	fields, err := docstore.Encode(tenant)
//	id, err := store.Insert(ctx, docstore.CollectionTenants, fields)
//
//	doc, err := store.Get(ctx, docstore.CollectionTenants, id)
//	var t tenants.Tenant
//	err = docstore.Decode(doc, &t)
//
// Open builds a backend from Config.
package docstore
