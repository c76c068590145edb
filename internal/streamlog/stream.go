/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package streamlog implements the per-stream append-only log engine and the
node-local catalog of streams (the Streamer). On-disk layout per stream:

	<base>/<stream_id>/stream.log         append-only messages
	<base>/<stream_id>/high_watermark     8-byte LE u64, overwritten in place

Message record on disk: offset(8) | id(8) | payload_len(4) | payload, the
same little-endian layout AppendMessages/PollMessages carry on the wire
(internal/wire.Message), grounded on node/src/streaming/stream.rs.
*/
package streamlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	sysErrors "streamnode/internal/errors"
	"streamnode/internal/logging"
	"streamnode/internal/wire"

	"golang.org/x/sys/unix"
)

const logFileName = "stream.log"
const highWatermarkFileName = "high_watermark"

// Stream is one stream's append-only log, its high-watermark file, and the
// in-memory list of messages committed so far. Unlike the teacher's
// per-operation file::append/file::open (monoio's io_uring handles are cheap
// to open and close per call), a Stream here holds one persistent *os.File
// for the log across its lifetime and serializes access with mu — the
// idiomatic Go shape for a long-lived append-only file.
type Stream struct {
	mu sync.Mutex

	streamID uint64
	leaderID uint64

	directoryPath     string
	logPath           string
	highWatermarkPath string

	logFile *os.File

	messages        []wire.Message
	currentOffset   uint64
	currentPosition uint64
	currentID       uint64
	highWatermark   uint64

	logger *logging.Logger
}

// NewStream constructs a Stream rooted at basePath/streamID. Init must be
// called before any other operation.
func NewStream(streamID, leaderID uint64, basePath string) *Stream {
	dir := filepath.Join(basePath, fmt.Sprintf("%d", streamID))
	return &Stream{
		streamID:          streamID,
		leaderID:          leaderID,
		directoryPath:     dir,
		logPath:           filepath.Join(dir, logFileName),
		highWatermarkPath: filepath.Join(dir, highWatermarkFileName),
		logger:            logging.NewLogger("stream-log").With("stream_id", streamID),
	}
}

// Init creates the stream directory and its files if missing, or recovers
// in-memory state from an existing log: scans sequentially, stopping at the
// first incomplete or corrupted record, truncating the file to discard any
// torn tail left by a prior crash.
func (s *Stream) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.directoryPath); os.IsNotExist(err) {
		if err := os.MkdirAll(s.directoryPath, 0o755); err != nil {
			return sysErrors.NewIoError(fmt.Errorf("create stream directory %s: %w", s.directoryPath, err))
		}
		s.logger.Info("created stream directory", "path", s.directoryPath)
	}

	if err := s.initHighWatermark(); err != nil {
		return err
	}

	created, err := s.openOrCreateLogFile()
	if err != nil {
		return err
	}

	if !created {
		endOffset := s.highWatermark
		messages, position, err := s.loadMessagesFromDiskLocked(&endOffset)
		if err != nil {
			return err
		}
		if len(messages) > 0 {
			s.messages = messages
			s.currentPosition = position
			s.currentOffset = messages[len(messages)-1].Offset
			maxID := messages[0].ID
			for _, m := range messages {
				if m.ID > maxID {
					maxID = m.ID
				}
			}
			s.currentID = maxID
			if err := s.truncateLocked(position); err != nil {
				return err
			}
		}
	}

	s.logger.Info("initialized stream", "path", s.logPath, "messages", len(s.messages))
	return nil
}

func (s *Stream) initHighWatermark() error {
	if _, err := os.Stat(s.highWatermarkPath); os.IsNotExist(err) {
		f, err := os.OpenFile(s.highWatermarkPath, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return sysErrors.NewIoError(fmt.Errorf("create high watermark file %s: %w", s.highWatermarkPath, err))
		}
		defer f.Close()
		var buf [8]byte
		if _, err := f.WriteAt(buf[:], 0); err != nil {
			return sysErrors.NewIoError(fmt.Errorf("init high watermark: %w", err))
		}
		s.logger.Info("created empty high watermark file", "path", s.highWatermarkPath)
		return nil
	}

	f, err := os.Open(s.highWatermarkPath)
	if err != nil {
		return sysErrors.NewIoError(fmt.Errorf("open high watermark file %s: %w", s.highWatermarkPath, err))
	}
	defer f.Close()

	var buf [8]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return sysErrors.NewIoError(fmt.Errorf("read high watermark: %w", err))
	}
	s.highWatermark = binary.LittleEndian.Uint64(buf[:])
	s.logger.Info("initialized high watermark", "value", s.highWatermark)
	return nil
}

// openOrCreateLogFile opens the persistent log file handle, creating it if
// absent. It reports whether the file was newly created.
func (s *Stream) openOrCreateLogFile() (created bool, err error) {
	_, statErr := os.Stat(s.logPath)
	created = os.IsNotExist(statErr)

	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, sysErrors.NewIoError(fmt.Errorf("open stream file %s: %w", s.logPath, err))
	}
	s.logFile = f
	if created {
		s.logger.Info("created empty stream file", "path", s.logPath)
	}
	return created, nil
}

func (s *Stream) truncateLocked(size uint64) error {
	info, err := s.logFile.Stat()
	if err != nil {
		return sysErrors.NewIoError(fmt.Errorf("stat stream file %s: %w", s.logPath, err))
	}
	if uint64(info.Size()) <= size {
		return nil
	}
	s.logger.Info("truncating stream", "from_bytes", info.Size(), "to_bytes", size)
	if err := s.logFile.Truncate(int64(size)); err != nil {
		return sysErrors.NewIoError(fmt.Errorf("truncate stream file %s: %w", s.logPath, err))
	}
	return nil
}

// Delete removes the stream's directory (log, high watermark, and any
// partial files) recursively.
func (s *Stream) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	if err := os.RemoveAll(s.directoryPath); err != nil {
		s.logger.Error("failed to delete stream", "error", err)
		return sysErrors.NewIoError(fmt.Errorf("delete stream %d: %w", s.streamID, err))
	}
	s.logger.Info("deleted stream")
	return nil
}

// AppendMessages assigns offsets/ids to ms without touching disk, returning
// the resulting uncommitted messages and the offset in effect before this
// call (the "previous offset"). Offsets only advance once the stream already
// holds messages or the batch itself has produced one: a brand-new empty
// stream's first message lands at offset 0, not 1.
func (s *Stream) AppendMessages(ms []wire.AppendableMessage) ([]wire.Message, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previousOffset := s.currentOffset
	uncommitted := make([]wire.Message, 0, len(ms))
	for _, m := range ms {
		if len(s.messages) > 0 || len(uncommitted) > 0 {
			s.currentOffset++
		}
		if m.ID == 0 {
			s.currentID++
		} else {
			s.currentID = m.ID
		}
		uncommitted = append(uncommitted, wire.Message{
			Offset:  s.currentOffset,
			ID:      s.currentID,
			Payload: m.Payload,
		})
	}
	return uncommitted, previousOffset
}

// CommitMessages writes each message to the log file at the current write
// position, advances the position only on a successful write, appends the
// record to the in-memory list, and persists the new high watermark.
func (s *Stream) CommitMessages(messages []wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range messages {
		record := encodeRecord(m)
		if _, err := s.logFile.WriteAt(record, int64(s.currentPosition)); err != nil {
			s.logger.Error("failed to append message to stream file", "path", s.logPath, "error", err)
			return sysErrors.NewCannotAppendMessage(err)
		}
		if err := unix.Fdatasync(int(s.logFile.Fd())); err != nil {
			s.logger.Error("fdatasync failed on stream file", "path", s.logPath, "error", err)
			return sysErrors.NewCannotAppendMessage(err)
		}
		s.currentPosition += uint64(len(record))
		s.logger.Info("appended message", "offset", m.Offset, "position", s.currentPosition)
		s.messages = append(s.messages, m)
	}
	return s.setHighWatermarkLocked(s.currentOffset)
}

// ReplicateMessages commits messages whose offset/id were already assigned
// by the leader, advancing this stream's own counters to match — the
// follower-side counterpart to AppendMessages+CommitMessages, which assign
// them locally instead of trusting the wire.
func (s *Stream) ReplicateMessages(messages []wire.Message) error {
	s.mu.Lock()
	for _, m := range messages {
		if m.Offset > s.currentOffset {
			s.currentOffset = m.Offset
		}
		if m.ID > s.currentID {
			s.currentID = m.ID
		}
	}
	s.mu.Unlock()
	return s.CommitMessages(messages)
}

// PollMessages returns the contiguous slice [offset, min(offset+count-1,
// current_offset)]. An empty stream returns an empty slice without error,
// regardless of the requested offset/count.
func (s *Stream) PollMessages(offset, count uint64) ([]wire.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return nil, nil
	}
	if offset > s.currentOffset {
		return nil, sysErrors.NewInvalidOffset(offset, s.currentOffset)
	}
	if count == 0 {
		return nil, sysErrors.NewInvalidCount()
	}

	endOffset := offset + count - 1
	if endOffset > s.currentOffset {
		endOffset = s.currentOffset
	}
	out := make([]wire.Message, endOffset-offset+1)
	copy(out, s.messages[offset:endOffset+1])
	return out, nil
}

// LoadMessagesFromDisk re-reads the log file from the start, stopping at the
// first incomplete record or, if endOffset is non-nil, as soon as a record
// at or past endOffset has been read. It returns the decoded messages and
// the byte position immediately after the last valid record.
func (s *Stream) LoadMessagesFromDisk(endOffset *uint64) ([]wire.Message, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMessagesFromDiskLocked(endOffset)
}

func (s *Stream) loadMessagesFromDiskLocked(endOffset *uint64) ([]wire.Message, uint64, error) {
	f, err := os.Open(s.logPath)
	if err != nil {
		return nil, 0, sysErrors.NewIoError(fmt.Errorf("read stream file %s: %w", s.logPath, err))
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var messages []wire.Message
	var position uint64

	for {
		msg, n, err := decodeRecord(r)
		if err != nil {
			break
		}
		position += uint64(n)
		messages = append(messages, msg)

		if endOffset != nil && msg.Offset >= *endOffset {
			break
		}
	}

	return messages, position, nil
}

// SetHighWatermark persists the new high watermark, overwriting the file in
// place. high_watermark only ever advances after the bytes it names have
// already been durably written by CommitMessages.
func (s *Stream) SetHighWatermark(value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setHighWatermarkLocked(value)
}

func (s *Stream) setHighWatermarkLocked(value uint64) error {
	s.highWatermark = value
	f, err := os.OpenFile(s.highWatermarkPath, os.O_WRONLY, 0o644)
	if err != nil {
		return sysErrors.NewIoError(fmt.Errorf("open high watermark file %s: %w", s.highWatermarkPath, err))
	}
	defer f.Close()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		s.logger.Error("failed to write high watermark", "error", err)
		return sysErrors.NewIoError(fmt.Errorf("write high watermark: %w", err))
	}
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		s.logger.Error("fdatasync failed on high watermark file", "error", err)
		return sysErrors.NewIoError(fmt.Errorf("fdatasync high watermark: %w", err))
	}
	s.logger.Info("saved high watermark", "value", value)
	return nil
}

// CurrentOffset returns the stream's current (possibly uncommitted) offset.
func (s *Stream) CurrentOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentOffset
}

// encodeRecord lays out a message exactly as stored on disk:
// offset(8) | id(8) | payload_len(4) | payload, little-endian.
func encodeRecord(m wire.Message) []byte {
	buf := make([]byte, 8+8+4+len(m.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], m.Offset)
	binary.LittleEndian.PutUint64(buf[8:16], m.ID)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(m.Payload)))
	copy(buf[20:], m.Payload)
	return buf
}

// decodeRecord reads one record from r, returning the message and the
// number of bytes consumed. Any short read (including a torn tail left by a
// crash mid-write) is reported as an error so the caller can stop the scan.
func decodeRecord(r *bufio.Reader) (wire.Message, int, error) {
	var header [20]byte
	if _, err := io.ReadFull(r, header[:16]); err != nil {
		return wire.Message{}, 0, err
	}
	offset := binary.LittleEndian.Uint64(header[0:8])
	id := binary.LittleEndian.Uint64(header[8:16])

	if _, err := io.ReadFull(r, header[16:20]); err != nil {
		return wire.Message{}, 0, err
	}
	payloadLen := binary.LittleEndian.Uint32(header[16:20])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return wire.Message{}, 0, err
	}

	return wire.Message{Offset: offset, ID: id, Payload: payload}, 20 + int(payloadLen), nil
}
