// Package termcore contains the core subsystems of a branch-versioned
// clinical terminology store: the RF2 release ingestion pipeline, the
// reference-integrity engine and the MRCM auto-maintenance commit hook,
// together with the version-control substrate and predicate-indexed document
// store they run on.
//
// The root package carries cross-cutting plumbing (logging, retry, UUIDs,
// error taxonomy, serialization). Subsystems live in subpackages; backend
// wiring packages follow the in* convention (inmem for a single process,
// inredc for Cassandra + Redis).
package termcore
