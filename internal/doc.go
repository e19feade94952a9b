// Package internal documents the Tablón server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: business rules for users, anuncios, artists, artist requests and notifications
// - storage: repository interfaces and their Postgres implementation
// - jobs: River workers for notification email and cleanup
// - email, messaging: outbound delivery (SMTP/Resend, AMQP)
// - auth, audit, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
