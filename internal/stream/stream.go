// Package stream moves module bytes between clients and the blob store in
// fixed-size chunks. Transfers are gated on catalog registration: an actor
// that has no token on file can neither upload nor download.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ewbankkit/gantry/internal/blob"
	"github.com/ewbankkit/gantry/internal/host"
	"github.com/ewbankkit/gantry/protocol"
)

var (
	// ErrNotRegistered marks a transfer request for an actor the catalog
	// does not know.
	ErrNotRegistered = errors.New("actor not registered")
	// ErrNotFound marks a download of a registered actor with no blob on
	// file.
	ErrNotFound = errors.New("module blob not found")
)

// Module blobs live in one container, keyed by the actor subject.
const (
	blobContainer = "gantry"
	blobSuffix    = ".wasm"
)

// ActorDirectory is the catalog surface the stream service consumes
// in-process. The host injects the catalog itself.
type ActorDirectory interface {
	ActorSubjects(ctx context.Context) ([]string, error)
}

// Service is the stream message handler.
type Service struct {
	dir    ActorDirectory
	blobs  blob.Store
	pub    host.Publisher
	logger *zap.Logger
}

// New builds the stream service.
func New(dir ActorDirectory, blobs blob.Store, pub host.Publisher, logger *zap.Logger) *Service {
	return &Service{dir: dir, blobs: blobs, pub: pub, logger: logger}
}

// Name implements host.Service.
func (s *Service) Name() string { return "gantry-stream" }

// Subscriptions implements host.Service.
func (s *Service) Subscriptions() []string {
	return []string{
		protocol.SubjectStreamDownload,
		protocol.SubjectStreamUpload,
		protocol.SubjectStreamUploadPrefix + "*",
	}
}

// HandleMessage implements host.Service.
func (s *Service) HandleMessage(ctx context.Context, msg protocol.BrokerMessage) error {
	switch {
	case msg.Subject == protocol.SubjectStreamDownload:
		return s.initiateDownload(ctx, msg)
	case msg.Subject == protocol.SubjectStreamUpload:
		return s.initiateUpload(ctx, msg)
	case strings.HasPrefix(msg.Subject, protocol.SubjectStreamUploadPrefix):
		return s.transportChunk(ctx, msg)
	}
	return fmt.Errorf("%w: %s", host.ErrUnknownSubject, msg.Subject)
}

func (s *Service) initiateDownload(ctx context.Context, msg protocol.BrokerMessage) error {
	var req protocol.DownloadRequest
	if err := protocol.Decode(msg.Body, &req); err != nil {
		return err
	}
	if err := s.checkRegistered(ctx, req.Actor); err != nil {
		return err
	}

	info, err := s.blobs.Info(ctx, blobContainer, req.Actor+blobSuffix)
	if errors.Is(err, blob.ErrNoSuchBlob) {
		return fmt.Errorf("%w: %s", ErrNotFound, req.Actor)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}

	// Ack before the first chunk so the client knows the transfer shape.
	// The requester subscribed to its download subject before asking.
	err = s.ack(msg.ReplyTo, protocol.TransferAck{
		Success:     true,
		Actor:       req.Actor,
		TotalBytes:  info.ByteSize,
		ChunkSize:   protocol.DefaultChunkSize,
		TotalChunks: info.ByteSize / protocol.DefaultChunkSize,
	})
	if err != nil {
		return err
	}

	s.logger.Info("download started",
		zap.String("actor", req.Actor),
		zap.Uint64("total_bytes", info.ByteSize),
	)
	err = s.blobs.StartDownload(ctx, blobContainer, info.ID, protocol.DefaultChunkSize, s.publishChunk)
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	return nil
}

// publishChunk re-encodes a blob-store chunk as a FileChunk on the actor's
// download subject. The actor subject is the blob id with the .wasm suffix
// stripped.
func (s *Service) publishChunk(c blob.Chunk) error {
	actor := strings.TrimSuffix(c.ID, blobSuffix)
	body, err := protocol.Encode(protocol.FileChunk{
		SequenceNo:  c.SequenceNo,
		Actor:       actor,
		TotalBytes:  c.TotalBytes,
		ChunkSize:   c.ChunkSize,
		TotalChunks: c.TotalChunks,
		ChunkBytes:  c.Bytes,
	})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(protocol.DownloadSubject(actor), body); err != nil {
		return fmt.Errorf("%w: %v", host.ErrBroker, err)
	}
	return nil
}

func (s *Service) initiateUpload(ctx context.Context, msg protocol.BrokerMessage) error {
	var req protocol.UploadRequest
	if err := protocol.Decode(msg.Body, &req); err != nil {
		return err
	}
	if err := s.checkRegistered(ctx, req.Actor); err != nil {
		return err
	}

	// The ack describes the server's emission parameters; the upload session
	// itself honors the chunk size the caller will actually send.
	err := s.ack(msg.ReplyTo, protocol.TransferAck{
		Success:     true,
		Actor:       req.Actor,
		TotalBytes:  req.TotalBytes,
		ChunkSize:   protocol.DefaultChunkSize,
		TotalChunks: req.TotalBytes / protocol.DefaultChunkSize,
	})
	if err != nil {
		return err
	}

	s.logger.Info("upload started",
		zap.String("actor", req.Actor),
		zap.Uint64("total_bytes", req.TotalBytes),
		zap.Uint64("chunk_size", req.ChunkSize),
	)
	err = s.blobs.StartUpload(ctx, blobContainer, req.Actor+blobSuffix, req.TotalBytes, req.ChunkSize)
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}
	return nil
}

func (s *Service) transportChunk(ctx context.Context, msg protocol.BrokerMessage) error {
	var chunk protocol.FileChunk
	if err := protocol.Decode(msg.Body, &chunk); err != nil {
		return err
	}

	err := s.blobs.UploadChunk(ctx, blobContainer, chunk.Actor+blobSuffix, chunk.SequenceNo, chunk.ChunkBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrStorage, err)
	}

	return s.ackChunk(msg.ReplyTo, protocol.ChunkAck{
		Success:    true,
		SequenceNo: chunk.SequenceNo,
		BytesSent:  uint64(len(chunk.ChunkBytes)),
	})
}

func (s *Service) checkRegistered(ctx context.Context, actor string) error {
	subjects, err := s.dir.ActorSubjects(ctx)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		if subject == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotRegistered, actor)
}

func (s *Service) ack(replyTo string, ack protocol.TransferAck) error {
	if replyTo == "" {
		return nil
	}
	body, err := protocol.Encode(ack)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(replyTo, body); err != nil {
		return fmt.Errorf("%w: %v", host.ErrBroker, err)
	}
	return nil
}

func (s *Service) ackChunk(replyTo string, ack protocol.ChunkAck) error {
	if replyTo == "" {
		return nil
	}
	body, err := protocol.Encode(ack)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(replyTo, body); err != nil {
		return fmt.Errorf("%w: %v", host.ErrBroker, err)
	}
	return nil
}
