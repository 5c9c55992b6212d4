// Package blobstore abstracts where cached engram artifacts live.
//
// Three implementations are provided:
//
//   - MemoryStore: in-process map, used by tests and short-lived tools.
//   - LocalStore: directory on the local file system with mmap-backed
//     reads and atomic replace-on-put.
//   - minio.Store (subpackage): S3-compatible object storage, for
//     sharing expensive tokenizer/prime artifacts across machines.
package blobstore
