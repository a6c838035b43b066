// Package api exposes the optimizer over HTTP and provides the matching
// client.
//
// # Endpoints
//
//	GET  /ping                      liveness, no auth
//	GET  /api/status                vault health and pending count
//	POST /api/assets/:id/optimize   {success, message}
//	POST /api/assets/:id/restore    {success, message}
//	POST /api/batch/step            {done, count?}
//	POST /api/restore-all           {restoredCount}
//	POST /api/inventory             pending/managed/missing classification
//
// Per-asset outcomes, failures included, are answered with 200 and
// success=false so a caller can keep stepping; transport and store problems
// use HTTP error codes with an ErrorResponse body. An unhealthy vault answers
// 503 before any asset is touched.
//
// When a token is configured every /api route requires
// "Authorization: Bearer <token>". Each request gets a correlation ID from
// X-Request-ID or a fresh UUID, echoed back in the response header and
// attached to log lines.
//
// Client speaks the same protocol and implements bulk.Stepper, so the CLI can
// drive a remote server with the same continuation loop it uses locally.
//
// DTOs use camelCase JSON tags.
package api
