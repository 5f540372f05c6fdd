// Package png reads chunk-level metadata from PNG files.
//
// Only ancillary metadata and the image header are decoded; pixel data (IDAT)
// is skipped without buffering. Supported chunks: IHDR, tEXt, iTXt, zTXt,
// pHYs and tIME.
package png
