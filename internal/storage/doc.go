// Package storage copies job folders between remote locations and local
// directories.
//
// Locations are addressed by URL scheme. s3:// is served by minio-go, gs:// by
// the gsutil CLI, and file:// or a bare path by a local copy. Router picks the
// backend for a location so callers work against the Storage interface only.
// Every backend treats a folder as flat: only its top-level objects are
// listed, downloaded or written.
package storage
