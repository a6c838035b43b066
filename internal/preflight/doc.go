// Package preflight provides readiness checks for the directories, vault, and
// encoders imgvault depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failing check before
//     serving, so a broken vault is visible before the first batch.
//   - The CLI "imgvault status" command renders the same results as a table.
//
// Checks never mutate state. The vault root is not created here.
package preflight
