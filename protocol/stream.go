package protocol

// Stream subjects. Transfers are initiated on the fixed get/put subjects;
// the chunks themselves travel on per-actor subjects built from the
// prefixes below.
const (
	SubjectStreamDownload = "gantry.stream.get"
	SubjectStreamUpload   = "gantry.stream.put"

	SubjectStreamDownloadPrefix = "gantry.stream.download."
	SubjectStreamUploadPrefix   = "gantry.stream.upload."
)

// DefaultChunkSize is the server's chunk emission size: 256 KiB.
const DefaultChunkSize uint64 = 256 * 1024

// UploadSubject returns the per-actor subject on which upload chunks travel.
func UploadSubject(actor string) string { return SubjectStreamUploadPrefix + actor }

// DownloadSubject returns the per-actor subject on which download chunks
// are published.
func DownloadSubject(actor string) string { return SubjectStreamDownloadPrefix + actor }

// DownloadRequest asks the registry to stream an actor module back to the
// requester. The requester must already be subscribed to the actor's
// download subject when it sends this.
type DownloadRequest struct {
	Actor string `msgpack:"actor"`
}

// UploadRequest opens an upload session for an actor module.
//
// TotalChunks follows the registry's floor convention:
// total_bytes / chunk_size with integer division. When total_bytes is not a
// multiple of chunk_size, the trailing short chunk carries a sequence number
// equal to TotalChunks and terminates the transfer.
type UploadRequest struct {
	Actor       string `msgpack:"actor"`
	TotalBytes  uint64 `msgpack:"total_bytes"`
	ChunkSize   uint64 `msgpack:"chunk_size"`
	TotalChunks uint64 `msgpack:"total_chunks"`
}

// TransferAck acknowledges an upload or download handshake. ChunkSize and
// TotalChunks describe the server's emission parameters, not necessarily the
// ones proposed by the requester.
type TransferAck struct {
	Success     bool   `msgpack:"success"`
	Actor       string `msgpack:"actor"`
	TotalBytes  uint64 `msgpack:"total_bytes"`
	ChunkSize   uint64 `msgpack:"chunk_size"`
	TotalChunks uint64 `msgpack:"total_chunks"`
}

// ChunkAck acknowledges a single uploaded chunk.
type ChunkAck struct {
	Success    bool   `msgpack:"success"`
	SequenceNo uint64 `msgpack:"sequence_no"`
	BytesSent  uint64 `msgpack:"bytes_sent"`
}

// FileChunk is one slice of a module's bytes. Sequence numbers are zero
// based and monotonic within a transfer.
type FileChunk struct {
	SequenceNo  uint64 `msgpack:"sequence_no"`
	Actor       string `msgpack:"actor"`
	TotalBytes  uint64 `msgpack:"total_bytes"`
	ChunkSize   uint64 `msgpack:"chunk_size"`
	TotalChunks uint64 `msgpack:"total_chunks"`
	ChunkBytes  []byte `msgpack:"chunk_bytes"`
}
