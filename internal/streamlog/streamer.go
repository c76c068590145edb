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

package streamlog

import (
	"sync"

	sysErrors "streamnode/internal/errors"
	"streamnode/internal/logging"
	"streamnode/internal/wire"
)

// Streamer is this node's catalog of streams: a StreamId -> Stream mapping,
// owned exclusively by the Streamer's lock (no component reaches into a
// Stream without going through here first).
type Streamer struct {
	mu       sync.Mutex
	basePath string
	nodeID   uint64
	streams  map[uint64]*Stream
	logger   *logging.Logger
}

// NewStreamer creates a Streamer rooted at basePath. nodeID is recorded as
// the leader_id on every Stream this node creates.
func NewStreamer(basePath string, nodeID uint64) *Streamer {
	return &Streamer{
		basePath: basePath,
		nodeID:   nodeID,
		streams:  make(map[uint64]*Stream),
		logger:   logging.NewLogger("streamer"),
	}
}

// LoadExisting scans basePath for stream directories left over from a prior
// run and Inits each one, restoring the in-memory catalog after a restart.
func (s *Streamer) LoadExisting(streamIDs []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range streamIDs {
		stream := NewStream(id, s.nodeID, s.basePath)
		if err := stream.Init(); err != nil {
			return err
		}
		s.streams[id] = stream
	}
	return nil
}

// CreateStream is idempotent-by-log: a duplicate id produces a warning and
// no state change, it is never reported as an error.
func (s *Streamer) CreateStream(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[id]; exists {
		s.logger.Warn("stream already exists, ignoring duplicate create", "stream_id", id)
		return nil
	}

	stream := NewStream(id, s.nodeID, s.basePath)
	if err := stream.Init(); err != nil {
		return err
	}
	s.streams[id] = stream
	s.logger.Info("created stream", "stream_id", id)
	return nil
}

// DeleteStream removes the catalog entry and deletes the stream's on-disk
// directory.
func (s *Streamer) DeleteStream(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[id]
	if !ok {
		return sysErrors.NewInvalidStreamId(id)
	}
	if err := stream.Delete(); err != nil {
		return err
	}
	delete(s.streams, id)
	s.logger.Info("deleted stream", "stream_id", id)
	return nil
}

// AppendMessages routes to the named stream's AppendMessages+CommitMessages,
// returning the committed messages and the offset in effect before this
// call.
func (s *Streamer) AppendMessages(streamID uint64, ms []wire.AppendableMessage) ([]wire.Message, uint64, error) {
	stream, err := s.lookup(streamID)
	if err != nil {
		return nil, 0, err
	}

	uncommitted, previousOffset := stream.AppendMessages(ms)
	if err := stream.CommitMessages(uncommitted); err != nil {
		return nil, 0, err
	}
	return uncommitted, previousOffset, nil
}

// ReplicateMessages commits messages that already carry their offsets and
// ids, as assigned by the leader — the follower-side counterpart to
// AppendMessages, which assigns them. Used to apply a SyncMessages batch.
func (s *Streamer) ReplicateMessages(streamID uint64, messages []wire.Message) error {
	stream, err := s.lookup(streamID)
	if err != nil {
		return err
	}
	return stream.ReplicateMessages(messages)
}

// PollMessages routes to the named stream's PollMessages.
func (s *Streamer) PollMessages(streamID, offset, count uint64) ([]wire.Message, error) {
	stream, err := s.lookup(streamID)
	if err != nil {
		return nil, err
	}
	return stream.PollMessages(offset, count)
}

// GetStreams returns a summary of every stream this node knows about.
func (s *Streamer) GetStreams() []wire.StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]wire.StreamInfo, 0, len(s.streams))
	for id, stream := range s.streams {
		out = append(out, wire.StreamInfo{ID: id, Offset: stream.CurrentOffset()})
	}
	return out
}

func (s *Streamer) lookup(streamID uint64) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[streamID]
	if !ok {
		return nil, sysErrors.NewInvalidStreamId(streamID)
	}
	return stream, nil
}
