// Package module is the ingestion core's extension point (§4.6 step
// 11, §6). Anything the core does not interpret itself — a
// domain-specific event field on a TracePacket — is handed to whatever
// Handlers registered for that field id, in registration order,
// without the core ever needing to know what the field means.
package module
