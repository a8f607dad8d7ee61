package blob

import (
	"context"
	"fmt"
	"sync"
)

// memoryStore is a map-backed Store for tests.
type memoryStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	uploads map[string]*memoryUpload
}

type memoryUpload struct {
	buf       []byte
	total     uint64
	chunkSize uint64
	written   map[uint64]int
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		blobs:   make(map[string][]byte),
		uploads: make(map[string]*memoryUpload),
	}
}

// Seed stores a blob directly, bypassing the upload protocol. Test helper.
func Seed(s Store, container, id string, data []byte) {
	m := s.(*memoryStore)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[container+"/"+id] = append([]byte(nil), data...)
}

func (s *memoryStore) Info(_ context.Context, container, id string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[container+"/"+id]
	if !ok {
		return Info{}, ErrNoSuchBlob
	}
	return Info{Container: container, ID: id, ByteSize: uint64(len(data))}, nil
}

func (s *memoryStore) StartUpload(_ context.Context, container, id string, totalBytes, chunkSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[container+"/"+id] = &memoryUpload{
		buf:       make([]byte, totalBytes),
		total:     totalBytes,
		chunkSize: chunkSize,
		written:   make(map[uint64]int),
	}
	return nil
}

func (s *memoryStore) UploadChunk(_ context.Context, container, id string, seq uint64, data []byte) error {
	key := container + "/" + id
	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchTransfer, key)
	}
	offset := seq * up.chunkSize
	if offset+uint64(len(data)) > up.total {
		return fmt.Errorf("chunk %d overruns blob %s", seq, key)
	}
	copy(up.buf[offset:], data)
	up.written[seq] = len(data)

	var received uint64
	for _, n := range up.written {
		received += uint64(n)
	}
	if received >= up.total {
		s.blobs[key] = up.buf
		delete(s.uploads, key)
	}
	return nil
}

func (s *memoryStore) StartDownload(_ context.Context, container, id string, chunkSize uint64, emit func(Chunk) error) error {
	s.mu.Lock()
	data, ok := s.blobs[container+"/"+id]
	s.mu.Unlock()
	if !ok {
		return ErrNoSuchBlob
	}
	return emitChunks(id, data, chunkSize, emit)
}

func (s *memoryStore) Ping(context.Context) error { return nil }
