// Package blob is the blob-store capability behind the stream service:
// chunked uploads and downloads of module bytes keyed by (container, id).
// The production binding is S3 (MinIO-compatible); an in-memory store backs
// tests.
package blob

import (
	"context"
	"errors"
)

// ErrNoSuchBlob is returned by Info for blobs that do not exist.
var ErrNoSuchBlob = errors.New("no such blob")

// ErrNoSuchTransfer is returned by UploadChunk when no upload session is
// open for the target blob.
var ErrNoSuchTransfer = errors.New("no such transfer")

// Info describes a stored blob.
type Info struct {
	Container string
	ID        string
	ByteSize  uint64
}

// Chunk is one slice of a blob delivered by StartDownload, in sequence
// order.
type Chunk struct {
	ID          string
	SequenceNo  uint64
	TotalBytes  uint64
	ChunkSize   uint64
	TotalChunks uint64
	Bytes       []byte
}

// Store is the blob surface the stream service consumes. Uploads are staged
// per (container, id) and finalized by the store once the received byte
// count reaches the session's total, which covers both exact-multiple
// transfers and a trailing short chunk.
type Store interface {
	// Info returns blob metadata, or ErrNoSuchBlob.
	Info(ctx context.Context, container, id string) (Info, error)
	// StartUpload opens an upload session expecting totalBytes in chunks of
	// chunkSize (the last chunk may be short).
	StartUpload(ctx context.Context, container, id string, totalBytes, chunkSize uint64) error
	// UploadChunk writes data at offset seq*chunkSize within the open
	// session. Re-writing a sequence number overwrites the earlier bytes.
	UploadChunk(ctx context.Context, container, id string, seq uint64, data []byte) error
	// StartDownload reads the blob and calls emit once per chunkSize slice,
	// in sequence order, until the whole blob has been delivered. A non-nil
	// error from emit stops the download.
	StartDownload(ctx context.Context, container, id string, chunkSize uint64, emit func(Chunk) error) error
	// Ping probes the backing store for readiness.
	Ping(ctx context.Context) error
}
