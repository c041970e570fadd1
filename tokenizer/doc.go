// Package tokenizer reframes an append-only stream of input chunks into
// self-contained packet blobs. It owns the small carry buffer that
// spans chunk boundaries, and transparently inflates compressed_packets
// bundles, recursively re-tokenizing their contents as if they had
// arrived inline.
package tokenizer
