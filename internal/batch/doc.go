// Package batch selects pending assets and runs them through the optimizer in
// small request-sized steps.
//
// A step recomputes its selection from the media store every time; nothing is
// remembered between steps, so callers may stop at any point and resume later.
// The continuation loop belongs to the caller (see package bulk).
package batch
