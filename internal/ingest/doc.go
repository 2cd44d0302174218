// Package ingest implements the ingestion pipeline: fetching a repo's bytes
// (git clone, GitHub archive fallback, local copy, or a synthetic docs
// upsert), normalizing every copied file to UTF-8/LF/no-BOM under a byte
// cap, and classifying each normalized file as doc, code, or asset for the
// downstream parser and indexing stages.
//
// Every stage writes into a caller-supplied raw/ and norm/ directory pair
// rather than owning bundle layout itself; internal/storage and
// internal/lifecycle decide where those directories live on disk.
package ingest
