// Package storage is the file collaborator used by File steps.
//
// Backends implement [Storage] and register a factory from init:
//
//   - storage/local: local filesystem rooted at base_path
//   - storage/s3: Amazon S3 and S3-compatible stores (MinIO, R2)
//
// Paths handed to a backend are relative and already confined with
// [ScopedPath]; backends still refuse anything that would resolve outside
// their root.
//
//	storage:
//	  provider: "s3"
//	  bucket: "pipeflow-artifacts"
//	  region: "us-east-1"
//	  scope: "execution"
package storage
