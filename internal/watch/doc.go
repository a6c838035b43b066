// Package watch implements convert-on-upload: it watches the uploads tree and
// hands every new image that has stopped changing to the optimizer.
//
// fsnotify watches are per directory, so new subdirectories (a new month
// folder, say) are added as they appear. The vault directory is never
// watched. A file is considered settled once no write or create event has
// been seen for the configured settle period.
package watch
