package client

import (
	"context"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"

	"github.com/ewbankkit/gantry/protocol"
)

// ReceivedChunk is the progress report handed to a download callback after
// each chunk lands.
type ReceivedChunk struct {
	SequenceNo    uint64
	TotalChunks   uint64
	TotalBytes    uint64
	ReceivedBytes uint64
}

// Download streams an actor's module from the registry into w. The progress
// callback may be nil. The client subscribes to the actor's download
// subject before asking the server to start, so no chunk can be missed.
func (c *Client) Download(ctx context.Context, actor string, w io.Writer, progress func(ReceivedChunk)) error {
	chunks := make(chan protocol.FileChunk, 16)
	sub, err := c.nc.Subscribe(protocol.DownloadSubject(actor), func(msg *nats.Msg) {
		var chunk protocol.FileChunk
		if err := protocol.Decode(msg.Data, &chunk); err != nil {
			return
		}
		chunks <- chunk
	})
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrRequestFailed, err)
	}
	defer sub.Unsubscribe() //nolint:errcheck // best effort on teardown
	if err := c.nc.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrRequestFailed, err)
	}

	body, err := protocol.Encode(protocol.DownloadRequest{Actor: actor})
	if err != nil {
		return err
	}
	msg, err := c.nc.Request(protocol.SubjectStreamDownload, body, StreamInitTimeout)
	if err != nil {
		return fmt.Errorf("%w: initiate download: %v", ErrRequestFailed, err)
	}
	var ack protocol.TransferAck
	if err := protocol.Decode(msg.Data, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("%w: download refused", ErrRequestFailed)
	}

	var received uint64
	for received < ack.TotalBytes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-chunks:
			if _, err := w.Write(chunk.ChunkBytes); err != nil {
				return fmt.Errorf("write chunk %d: %w", chunk.SequenceNo, err)
			}
			received += uint64(len(chunk.ChunkBytes))
			if progress != nil {
				progress(ReceivedChunk{
					SequenceNo:    chunk.SequenceNo,
					TotalChunks:   chunk.TotalChunks,
					TotalBytes:    chunk.TotalBytes,
					ReceivedBytes: received,
				})
			}
		}
	}
	return nil
}

// Upload performs the two-phase upload: handshake on the put subject, then
// one acknowledged chunk request per slice of r. size is the exact byte
// count r will yield.
func (c *Client) Upload(ctx context.Context, actor string, r io.Reader, size uint64) error {
	req := protocol.UploadRequest{
		Actor:       actor,
		TotalBytes:  size,
		ChunkSize:   protocol.DefaultChunkSize,
		TotalChunks: size / protocol.DefaultChunkSize,
	}
	body, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	msg, err := c.nc.Request(protocol.SubjectStreamUpload, body, StreamInitTimeout)
	if err != nil {
		return fmt.Errorf("%w: initiate upload: %v", ErrRequestFailed, err)
	}
	var ack protocol.TransferAck
	if err := protocol.Decode(msg.Data, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("%w: upload refused", ErrRequestFailed)
	}

	buf := make([]byte, protocol.DefaultChunkSize)
	var seq, sent uint64
	for sent < size {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// trailing short chunk
		} else if err != nil {
			return fmt.Errorf("read chunk %d: %w", seq, err)
		}
		if n == 0 {
			return fmt.Errorf("source exhausted at %d of %d bytes", sent, size)
		}

		chunk, err := protocol.Encode(protocol.FileChunk{
			SequenceNo:  seq,
			Actor:       actor,
			TotalBytes:  size,
			ChunkSize:   protocol.DefaultChunkSize,
			TotalChunks: req.TotalChunks,
			ChunkBytes:  buf[:n],
		})
		if err != nil {
			return err
		}
		reply, err := c.nc.Request(protocol.UploadSubject(actor), chunk, ChunkTimeout)
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %v", ErrRequestFailed, seq, err)
		}
		var chunkAck protocol.ChunkAck
		if err := protocol.Decode(reply.Data, &chunkAck); err != nil {
			return err
		}
		if !chunkAck.Success || chunkAck.SequenceNo != seq {
			return fmt.Errorf("%w: chunk %d not acknowledged", ErrRequestFailed, seq)
		}

		sent += uint64(n)
		seq++
	}
	return nil
}
