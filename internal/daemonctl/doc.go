// Package daemonctl starts and stops imgvaultd from the CLI.
//
// The daemon is tracked through the pid file it writes under data_dir and
// its HTTP API: a daemon counts as ready once /ping answers. Stop sends
// SIGTERM and escalates to SIGKILL after a grace period.
package daemonctl
