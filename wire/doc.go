// Package wire implements a partial, non-allocating tag-length-value
// decoder over a blob.View, in the style of a protobuf wire-format
// reader: it yields (field id, wire type, payload) tuples on demand and
// only materializes the handful of fields that higher layers name
// explicitly. Length-delimited payloads are handed back as blob.Views
// into the original source, never copied.
package wire
