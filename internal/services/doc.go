// Package services defines shared utilities consumed by the vault, codec,
// optimizer, and batch packages.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries
//     one classifiable outcome (vaulting failed, conversion failed, ...).
//
// Use these helpers when wiring new code paths so error classification and
// observability stay uniform across the pipeline.
package services
