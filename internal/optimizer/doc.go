// Package optimizer moves one asset at a time between its original and
// converted forms.
//
// Optimize vaults the original, converts it back into the asset's directory,
// and records where the original went; any conversion failure moves the
// original back. Restore reverses a conversion. Both take a per-asset
// advisory lock under the data directory so two processes never operate on
// the same asset at once.
//
// Bookkeeping flows through the MediaStore interface; library.Store is the
// shipped implementation.
package optimizer
