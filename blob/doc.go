// Package blob implements the zero-copy, reference-counted byte buffer
// that underlies every other ingestion component. A Blob owns a single
// backing byte array; a View is an offset+length window into it. Slicing
// a View never copies bytes, only shares ownership of the Blob it came
// from, so a packet parsed out of a multi-megabyte input chunk can be
// held onto without retaining anything beyond that one chunk.
package blob
