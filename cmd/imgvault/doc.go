// Command imgvault converts the images of a media library to WebP or AVIF
// while keeping every original restorable from a hidden vault.
//
// Per-asset and bulk commands run against the local installation, or against
// a running imgvaultd when --remote is set. Every command prints a table by
// default; --json and --output yaml emit machine-readable results.
package main
