// Package ingest drives a crawl of a paginated event listing and commits the
// surviving records to a Store.
//
// A run moves through FetchingPage, Extracting, Validating and
// PersistingBatch for each page and ends in Done or Aborted. A 404, an empty
// page or the page cap end the run normally. Transport failures that outlive
// the fetch retry policy, other HTTP error statuses, a failing duplicate
// check and cancellation abort it. Problems scoped to one block, one record
// or one insert are logged, counted in the Report and skipped.
package ingest
