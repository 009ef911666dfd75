package constants

// TelemetryBodyCap caps the in-memory copy of a streamed response kept for
// telemetry. Beyond this the copy is truncated and flagged rather than grown.
const TelemetryBodyCap = 4 << 20 // 4 MiB

// StreamCopyChunk is the read size used when forwarding streaming bodies.
const StreamCopyChunk = 32 << 10

// TelemetryQueueSize is the buffered depth of the background recorder queue.
const TelemetryQueueSize = 1024

// LROCacheMaxEntries bounds the in-process affinity cache (FIFO eviction).
const LROCacheMaxEntries = 4096
