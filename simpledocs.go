// Package simpledocs crawls documentation sites, extracts and chunks their
// content, embeds each chunk and stores it for semantic search. Progress of
// every crawl is published to subscribers as a full snapshot.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, postgres/, trafilatura/).
package simpledocs
