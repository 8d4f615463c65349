// Package event defines the event shapes that move through ingestion.
//
// A RawRecord is what the extractor pulls out of one structured-data object.
// A Record is the typed, sanitized form produced by validation. A Draft wraps a
// Record with the provenance fields a store needs to persist it, and Event is
// the persisted row. Location and Organization are resolved by name when an
// event is stored and are never duplicated for the same venue or group.
package event
