// Package daemon coordinates the long-running imgvaultd process.
//
// It ties the HTTP API server and the optional upload watcher into a single
// lifecycle with flock-based locking to prevent multiple instances. Startup
// runs the preflight checks and sweeps stale temp files before serving.
//
// Keep orchestration logic here: conversion and vault handling live in their
// own packages while the daemon focuses on startup, shutdown, and status.
package daemon
