// Package postgres implements goIdentity.CredentialStore and events.Store on PostgreSQL
// through pgx. Schema is embedded and applied with Migrate.
//
// Users are soft-deleted only: every lookup filters is_deleted = false. Security events are
// insert-only.
package postgres
