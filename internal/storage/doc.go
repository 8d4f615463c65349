// Package storage provides JSON-based persistence for events, locations and
// organizations.
//
// The whole store lives in one snapshot file (snapshot.json) that is
// rewritten atomically after every change. It satisfies the same contract as
// the PostgreSQL repositories: title-existence queries, per-record
// lookup-or-create of the venue and host, and a duplicate-title guard at
// insert time. The default location is ~/.local/share/ducksgather/.
package storage
