package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config points the store at an S3-compatible endpoint. Endpoint is
// optional for real AWS; MinIO and LocalStack need it plus path-style
// addressing, which is switched on whenever an endpoint is given.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

type s3Store struct {
	client *s3.Client

	mu      sync.Mutex
	uploads map[string]*s3Upload
}

// s3Upload stages one upload session in memory until all bytes have
// arrived, then the whole object is flushed with a single PutObject.
type s3Upload struct {
	buf        []byte
	totalBytes uint64
	chunkSize  uint64
	written    map[uint64]int // seq -> bytes written, so overwrites do not double count
}

// NewS3 builds a Store on an S3-compatible backend.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Store{client: client, uploads: make(map[string]*s3Upload)}, nil
}

func (s *s3Store) Info(ctx context.Context, container, id string) (Info, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(id),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Info{}, ErrNoSuchBlob
		}
		return Info{}, fmt.Errorf("s3 head %s/%s: %w", container, id, err)
	}
	var size uint64
	if head.ContentLength != nil {
		size = uint64(*head.ContentLength)
	}
	return Info{Container: container, ID: id, ByteSize: size}, nil
}

func (s *s3Store) StartUpload(_ context.Context, container, id string, totalBytes, chunkSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[container+"/"+id] = &s3Upload{
		buf:        make([]byte, totalBytes),
		totalBytes: totalBytes,
		chunkSize:  chunkSize,
		written:    make(map[uint64]int),
	}
	return nil
}

func (s *s3Store) UploadChunk(ctx context.Context, container, id string, seq uint64, data []byte) error {
	key := container + "/" + id

	s.mu.Lock()
	up, ok := s.uploads[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoSuchTransfer, key)
	}

	offset := seq * up.chunkSize
	if offset+uint64(len(data)) > up.totalBytes {
		s.mu.Unlock()
		return fmt.Errorf("chunk %d overruns blob %s", seq, key)
	}
	copy(up.buf[offset:], data)
	up.written[seq] = len(data)

	var received uint64
	for _, n := range up.written {
		received += uint64(n)
	}
	done := received >= up.totalBytes
	if done {
		delete(s.uploads, key)
	}
	s.mu.Unlock()

	if !done {
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(container),
		Key:         aws.String(id),
		Body:        bytes.NewReader(up.buf),
		ContentType: aws.String("application/wasm"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) StartDownload(ctx context.Context, container, id string, chunkSize uint64, emit func(Chunk) error) error {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("s3 get %s/%s: %w", container, id, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("s3 read %s/%s: %w", container, id, err)
	}

	return emitChunks(id, data, chunkSize, emit)
}

func (s *s3Store) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1)})
	return err
}

// emitChunks slices data into chunkSize pieces and delivers them in
// sequence order. TotalChunks carries the floor convention, so a trailing
// short chunk is numbered TotalChunks.
func emitChunks(id string, data []byte, chunkSize uint64, emit func(Chunk) error) error {
	totalBytes := uint64(len(data))
	totalChunks := totalBytes / chunkSize

	var seq uint64
	for offset := uint64(0); offset < totalBytes; offset += chunkSize {
		end := offset + chunkSize
		if end > totalBytes {
			end = totalBytes
		}
		err := emit(Chunk{
			ID:          id,
			SequenceNo:  seq,
			TotalBytes:  totalBytes,
			ChunkSize:   chunkSize,
			TotalChunks: totalChunks,
			Bytes:       data[offset:end],
		})
		if err != nil {
			return err
		}
		seq++
	}
	return nil
}
