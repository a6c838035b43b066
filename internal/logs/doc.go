// Package logs reads the imgvault log file for `imgvault logs`.
//
// Last returns the final lines with bounded memory, ReadFrom resumes at a
// byte offset, and Follow streams appended lines using fsnotify on the log
// directory so rotation and truncation are picked up.
package logs
