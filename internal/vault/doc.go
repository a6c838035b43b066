// Package vault keeps custody of original image files displaced by
// conversion.
//
// The vault is a single directory inside the uploads tree whose name carries
// an HKDF-derived hash of the installation secret. It mirrors the relative
// layout of the uploads tree (year/month folders and so on), so the backup
// path of any asset is a pure function of the secret and the asset's relative
// path. Access-denial markers are written when the root is first created.
//
// MoveIn and MoveOut report plain booleans: false always means the file did
// not move.
package vault
