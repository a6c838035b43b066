// Package codec re-encodes still images into WebP or AVIF.
//
// A Converter decodes the source (JPEG, PNG, GIF, BMP, TIFF, WebP), refuses
// images whose decoded pixels would exceed the configured memory bound,
// flattens transparency onto white, and hands the result to an Encoder. The
// encoded bytes are written to a temp name in the output directory and linked
// into place, so the final path never holds a partial file and an existing
// file is never replaced.
//
// Two encoder families exist: the builtin pure-Go encoders and the external
// cwebp/avifenc binaries.
package codec
