package blob

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInfoMissing(t *testing.T) {
	store := NewMemory()
	_, err := store.Info(context.Background(), "gantry", "MABCD.wasm")
	assert.ErrorIs(t, err, ErrNoSuchBlob)
}

func TestMemoryUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	// 600000 bytes in 256 KiB chunks: two full chunks plus a short trailer.
	const chunkSize = uint64(262144)
	data := bytes.Repeat([]byte{0xAB}, 600000)

	require.NoError(t, store.StartUpload(ctx, "gantry", "MABCD.wasm", uint64(len(data)), chunkSize))
	for seq := uint64(0); seq*chunkSize < uint64(len(data)); seq++ {
		end := (seq + 1) * chunkSize
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		require.NoError(t, store.UploadChunk(ctx, "gantry", "MABCD.wasm", seq, data[seq*chunkSize:end]))
	}

	info, err := store.Info(ctx, "gantry", "MABCD.wasm")
	require.NoError(t, err)
	assert.Equal(t, uint64(600000), info.ByteSize)

	var chunks []Chunk
	err = store.StartDownload(ctx, "gantry", "MABCD.wasm", chunkSize, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var rebuilt []byte
	for i, c := range chunks {
		assert.Equal(t, uint64(i), c.SequenceNo)
		assert.Equal(t, uint64(600000), c.TotalBytes)
		// Floor convention: the short trailer carries seq == TotalChunks.
		assert.Equal(t, uint64(2), c.TotalChunks)
		rebuilt = append(rebuilt, c.Bytes...)
	}
	assert.Equal(t, data, rebuilt)
}

func TestMemoryChunkOverwriteDoesNotDoubleCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.StartUpload(ctx, "gantry", "m.wasm", 8, 4))
	require.NoError(t, store.UploadChunk(ctx, "gantry", "m.wasm", 0, []byte("aaaa")))
	require.NoError(t, store.UploadChunk(ctx, "gantry", "m.wasm", 0, []byte("bbbb")))

	// Only half the bytes have arrived; the blob must not exist yet.
	_, err := store.Info(ctx, "gantry", "m.wasm")
	assert.ErrorIs(t, err, ErrNoSuchBlob)

	require.NoError(t, store.UploadChunk(ctx, "gantry", "m.wasm", 1, []byte("cccc")))

	var got []byte
	require.NoError(t, store.StartDownload(ctx, "gantry", "m.wasm", 8, func(c Chunk) error {
		got = append(got, c.Bytes...)
		return nil
	}))
	assert.Equal(t, []byte("bbbbcccc"), got)
}

func TestMemoryUploadChunkWithoutSession(t *testing.T) {
	err := NewMemory().UploadChunk(context.Background(), "gantry", "m.wasm", 0, []byte("x"))
	assert.ErrorIs(t, err, ErrNoSuchTransfer)
}

func TestEmitChunksExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 1024)

	var chunks []Chunk
	require.NoError(t, emitChunks("m.wasm", data, 256, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	}))

	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.Equal(t, uint64(4), c.TotalChunks)
		assert.Len(t, c.Bytes, 256)
	}
}
