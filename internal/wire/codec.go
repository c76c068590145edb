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

package wire

// Code is a command's stable numeric identifier, carried as the request
// frame's first field.
type Code uint32

const (
	CodeHello          Code = 1
	CodePing           Code = 2
	CodeAppendMessages Code = 3

	CodeCreateStream Code = 10
	CodeDeleteStream Code = 11
	CodePollMessages Code = 12
	CodeGetStreams   Code = 13
	CodeGetNodeState Code = 14
	CodeGetMetadata  Code = 15
	CodeLoadState    Code = 16

	CodeHeartbeat     Code = 20
	CodeRequestVote   Code = 21
	CodeSendVote      Code = 22
	CodeUpdateLeader  Code = 23
	CodeAppendEntries Code = 24

	CodeSyncMessages      Code = 1100
	CodeSyncCreatedStream Code = 1101
)

// IsKnownCode reports whether code names a documented command.
func IsKnownCode(code uint32) bool {
	switch Code(code) {
	case CodeHello, CodePing, CodeAppendMessages,
		CodeCreateStream, CodeDeleteStream, CodePollMessages, CodeGetStreams,
		CodeGetNodeState, CodeGetMetadata, CodeLoadState,
		CodeHeartbeat, CodeRequestVote, CodeSendVote, CodeUpdateLeader, CodeAppendEntries,
		CodeSyncMessages, CodeSyncCreatedStream:
		return true
	default:
		return false
	}
}

// ----------------------------------------------------------------------------
// Hello (1) — grounded on sdk/src/commands/hello.rs. Presented once per
// connection: the shared cluster secret, the sender's name, node id, and its
// current term/leader view.
// ----------------------------------------------------------------------------

type HelloRequest struct {
	Secret              string
	Name                string
	NodeID              uint64
	Term                uint64
	LeaderID            uint64 // 0 = none
	SupportsCompression bool   // advertises batch payload compression support
}

func (c HelloRequest) Encode() []byte {
	w := newWriter()
	w.PutString1(c.Secret)
	w.PutString1(c.Name)
	w.PutU64(c.NodeID)
	w.PutU64(c.Term)
	w.PutU64(c.LeaderID)
	w.PutBool(c.SupportsCompression)
	return w.Bytes()
}

func DecodeHelloRequest(payload []byte) (HelloRequest, error) {
	r := newReader(payload)
	secret, err := r.String1()
	if err != nil {
		return HelloRequest{}, err
	}
	name, err := r.String1()
	if err != nil {
		return HelloRequest{}, err
	}
	nodeID, err := r.U64()
	if err != nil {
		return HelloRequest{}, err
	}
	term, err := r.U64()
	if err != nil {
		return HelloRequest{}, err
	}
	leaderID, err := r.U64()
	if err != nil {
		return HelloRequest{}, err
	}
	// Older peers never wrote this trailing flag; absence means "unsupported".
	supportsCompression, _ := r.Bool()
	return HelloRequest{Secret: secret, Name: name, NodeID: nodeID, Term: term, LeaderID: leaderID, SupportsCompression: supportsCompression}, nil
}

// ----------------------------------------------------------------------------
// Ping (2) — grounded on sdk/src/commands/ping.rs. Empty request/response;
// success is carried entirely by the response status.
// ----------------------------------------------------------------------------

// ----------------------------------------------------------------------------
// AppendMessages (3) — grounded on sdk/src/commands/append_messages.rs.
// Messages are packed back-to-back and consumed until the payload is
// exhausted; there is no separate count field.
// ----------------------------------------------------------------------------

type AppendMessagesRequest struct {
	StreamID uint64
	Messages []AppendableMessage
}

func (c AppendMessagesRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.StreamID)
	for _, m := range c.Messages {
		w.PutU64(m.ID)
		w.PutBytes4(m.Payload)
	}
	return w.Bytes()
}

func DecodeAppendMessagesRequest(payload []byte) (AppendMessagesRequest, error) {
	r := newReader(payload)
	streamID, err := r.U64()
	if err != nil {
		return AppendMessagesRequest{}, err
	}
	var messages []AppendableMessage
	for !r.Done() {
		id, err := r.U64()
		if err != nil {
			return AppendMessagesRequest{}, err
		}
		payload, err := r.Bytes4()
		if err != nil {
			return AppendMessagesRequest{}, err
		}
		messages = append(messages, AppendableMessage{ID: id, Payload: payload})
	}
	return AppendMessagesRequest{StreamID: streamID, Messages: messages}, nil
}

// AppendMessagesResponse reports the offset range assigned to the append,
// mirroring Stream.append_messages's (messages, current_offset) return.
type AppendMessagesResponse struct {
	StreamID    uint64
	FirstOffset uint64
	LastOffset  uint64
}

func (c AppendMessagesResponse) Encode() []byte {
	w := newWriter()
	w.PutU64(c.StreamID)
	w.PutU64(c.FirstOffset)
	w.PutU64(c.LastOffset)
	return w.Bytes()
}

func DecodeAppendMessagesResponse(payload []byte) (AppendMessagesResponse, error) {
	r := newReader(payload)
	streamID, err := r.U64()
	if err != nil {
		return AppendMessagesResponse{}, err
	}
	first, err := r.U64()
	if err != nil {
		return AppendMessagesResponse{}, err
	}
	last, err := r.U64()
	if err != nil {
		return AppendMessagesResponse{}, err
	}
	return AppendMessagesResponse{StreamID: streamID, FirstOffset: first, LastOffset: last}, nil
}

// ----------------------------------------------------------------------------
// CreateStream (10) — grounded on sdk/src/commands/create_stream.rs. The
// caller assigns the stream id; the name field uses a 4-byte length prefix,
// unlike every other string on the wire. The original encoder is
// inconsistent here and that inconsistency is preserved rather than
// normalized away. Response is empty; success/failure is the status code.
// ----------------------------------------------------------------------------

type CreateStreamRequest struct {
	ID   uint64
	Name string
}

func (c CreateStreamRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.ID)
	w.PutString4(c.Name)
	return w.Bytes()
}

func DecodeCreateStreamRequest(payload []byte) (CreateStreamRequest, error) {
	r := newReader(payload)
	id, err := r.U64()
	if err != nil {
		return CreateStreamRequest{}, err
	}
	name, err := r.String4()
	if err != nil {
		return CreateStreamRequest{}, err
	}
	return CreateStreamRequest{ID: id, Name: name}, nil
}

// ----------------------------------------------------------------------------
// DeleteStream (11) — grounded on sdk/src/commands/delete_stream.rs
// (renumbered from the original's 32 into this block's documented range).
// Response is empty.
// ----------------------------------------------------------------------------

type DeleteStreamRequest struct {
	ID uint64
}

func (c DeleteStreamRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.ID)
	return w.Bytes()
}

func DecodeDeleteStreamRequest(payload []byte) (DeleteStreamRequest, error) {
	r := newReader(payload)
	id, err := r.U64()
	if err != nil {
		return DeleteStreamRequest{}, err
	}
	return DeleteStreamRequest{ID: id}, nil
}

// ----------------------------------------------------------------------------
// PollMessages (12) — grounded on sdk/src/commands/poll_messages.rs
// ----------------------------------------------------------------------------

type PollMessagesRequest struct {
	StreamID uint64
	Offset   uint64
	Count    uint64
}

func (c PollMessagesRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.StreamID)
	w.PutU64(c.Offset)
	w.PutU64(c.Count)
	return w.Bytes()
}

func DecodePollMessagesRequest(payload []byte) (PollMessagesRequest, error) {
	r := newReader(payload)
	streamID, err := r.U64()
	if err != nil {
		return PollMessagesRequest{}, err
	}
	offset, err := r.U64()
	if err != nil {
		return PollMessagesRequest{}, err
	}
	count, err := r.U64()
	if err != nil {
		return PollMessagesRequest{}, err
	}
	return PollMessagesRequest{StreamID: streamID, Offset: offset, Count: count}, nil
}

// PollMessagesResponse carries the polled messages. The count(4) prefix is
// this codec's own addition (the base spec leaves the response "minimal");
// each message then uses the same layout as a stream log record.
type PollMessagesResponse struct {
	Messages []Message
}

func (c PollMessagesResponse) Encode() []byte {
	w := newWriter()
	w.PutU32(uint32(len(c.Messages)))
	for _, m := range c.Messages {
		w.PutU64(m.Offset)
		w.PutU64(m.ID)
		w.PutBytes4(m.Payload)
	}
	return w.Bytes()
}

func DecodePollMessagesResponse(payload []byte) (PollMessagesResponse, error) {
	r := newReader(payload)
	count, err := r.U32()
	if err != nil {
		return PollMessagesResponse{}, err
	}
	messages := make([]Message, 0, count)
	for i := uint32(0); i < count; i++ {
		offset, err := r.U64()
		if err != nil {
			return PollMessagesResponse{}, err
		}
		id, err := r.U64()
		if err != nil {
			return PollMessagesResponse{}, err
		}
		payload, err := r.Bytes4()
		if err != nil {
			return PollMessagesResponse{}, err
		}
		messages = append(messages, Message{Offset: offset, ID: id, Payload: payload})
	}
	return PollMessagesResponse{Messages: messages}, nil
}

// ----------------------------------------------------------------------------
// GetStreams (13) — grounded on sdk/src/commands/get_streams.rs and
// sdk/src/models/stream.rs. Request is empty.
// ----------------------------------------------------------------------------

type GetStreamsResponse struct {
	Streams []StreamInfo
}

func (c GetStreamsResponse) Encode() []byte {
	w := newWriter()
	w.PutU32(uint32(len(c.Streams)))
	for _, s := range c.Streams {
		w.PutU64(s.ID)
		w.PutU64(s.Offset)
	}
	return w.Bytes()
}

func DecodeGetStreamsResponse(payload []byte) (GetStreamsResponse, error) {
	r := newReader(payload)
	count, err := r.U32()
	if err != nil {
		return GetStreamsResponse{}, err
	}
	streams := make([]StreamInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.U64()
		if err != nil {
			return GetStreamsResponse{}, err
		}
		offset, err := r.U64()
		if err != nil {
			return GetStreamsResponse{}, err
		}
		streams = append(streams, StreamInfo{ID: id, Offset: offset})
	}
	return GetStreamsResponse{Streams: streams}, nil
}

// ----------------------------------------------------------------------------
// GetNodeState (14) — grounded on sdk/src/commands/get_node_state.rs and
// sdk/src/models/node_state.rs. Request is empty.
// ----------------------------------------------------------------------------

type GetNodeStateResponse struct {
	State NodeState
}

func (c GetNodeStateResponse) Encode() []byte {
	w := newWriter()
	w.PutU64(c.State.ID)
	w.PutString1(c.State.Address)
	w.PutU64(c.State.Term)
	w.PutU64(c.State.CommitIndex)
	w.PutU64(c.State.LastApplied)
	return w.Bytes()
}

func DecodeGetNodeStateResponse(payload []byte) (GetNodeStateResponse, error) {
	r := newReader(payload)
	id, err := r.U64()
	if err != nil {
		return GetNodeStateResponse{}, err
	}
	addr, err := r.String1()
	if err != nil {
		return GetNodeStateResponse{}, err
	}
	term, err := r.U64()
	if err != nil {
		return GetNodeStateResponse{}, err
	}
	commitIndex, err := r.U64()
	if err != nil {
		return GetNodeStateResponse{}, err
	}
	lastApplied, err := r.U64()
	if err != nil {
		return GetNodeStateResponse{}, err
	}
	return GetNodeStateResponse{State: NodeState{
		ID: id, Address: addr, Term: term, CommitIndex: commitIndex, LastApplied: lastApplied,
	}}, nil
}

// ----------------------------------------------------------------------------
// GetMetadata (15) — grounded on sdk/src/commands/get_metadata.rs and
// sdk/src/models/metadata.rs. Request is empty.
// ----------------------------------------------------------------------------

type GetMetadataResponse struct {
	Metadata ClusterMetadata
}

func (c GetMetadataResponse) Encode() []byte {
	w := newWriter()
	w.PutU8(uint8(len(c.Metadata.Nodes)))
	for _, n := range c.Metadata.Nodes {
		w.PutU64(n.ID)
		w.PutString1(n.Name)
		w.PutString1(n.Address)
	}
	w.PutU8(uint8(len(c.Metadata.Streams)))
	for _, s := range c.Metadata.Streams {
		w.PutU64(s.ID)
		w.PutU64(s.LeaderID)
		w.PutString1(s.Name)
	}
	return w.Bytes()
}

func DecodeGetMetadataResponse(payload []byte) (GetMetadataResponse, error) {
	r := newReader(payload)
	nodeCount, err := r.U8()
	if err != nil {
		return GetMetadataResponse{}, err
	}
	nodes := make([]NodeInfo, 0, nodeCount)
	for i := uint8(0); i < nodeCount; i++ {
		id, err := r.U64()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		name, err := r.String1()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		addr, err := r.String1()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		nodes = append(nodes, NodeInfo{ID: id, Name: name, Address: addr})
	}

	streamCount, err := r.U8()
	if err != nil {
		return GetMetadataResponse{}, err
	}
	streams := make([]StreamCatalogEntry, 0, streamCount)
	for i := uint8(0); i < streamCount; i++ {
		id, err := r.U64()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		leaderID, err := r.U64()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		name, err := r.String1()
		if err != nil {
			return GetMetadataResponse{}, err
		}
		streams = append(streams, StreamCatalogEntry{ID: id, LeaderID: leaderID, Name: name})
	}

	return GetMetadataResponse{Metadata: ClusterMetadata{Nodes: nodes, Streams: streams}}, nil
}

// ----------------------------------------------------------------------------
// LoadState (16) — grounded on sdk/src/commands/load_state.rs
// ----------------------------------------------------------------------------

type LoadStateRequest struct {
	StartIndex uint64
}

func (c LoadStateRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.StartIndex)
	return w.Bytes()
}

func DecodeLoadStateRequest(payload []byte) (LoadStateRequest, error) {
	r := newReader(payload)
	startIndex, err := r.U64()
	if err != nil {
		return LoadStateRequest{}, err
	}
	return LoadStateRequest{StartIndex: startIndex}, nil
}

type LoadStateResponse struct {
	State AppendedState
}

func (c LoadStateResponse) Encode() []byte {
	w := newWriter()
	w.PutU64(c.State.Term)
	w.PutU64(c.State.LastApplied)
	for _, e := range c.State.Entries {
		encodeLogEntry(w, e)
	}
	return w.Bytes()
}

func DecodeLoadStateResponse(payload []byte) (LoadStateResponse, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return LoadStateResponse{}, err
	}
	lastApplied, err := r.U64()
	if err != nil {
		return LoadStateResponse{}, err
	}
	var entries []LogEntry
	for !r.Done() {
		e, err := decodeLogEntry(r)
		if err != nil {
			return LoadStateResponse{}, err
		}
		entries = append(entries, e)
	}
	return LoadStateResponse{State: AppendedState{Term: term, LastApplied: lastApplied, Entries: entries}}, nil
}

// ----------------------------------------------------------------------------
// LogEntry shared helper — grounded on sdk/src/models/log_entry.rs:
// index(8) | size(4) | data
// ----------------------------------------------------------------------------

func encodeLogEntry(w *writer, e LogEntry) {
	w.PutU64(e.Index)
	w.PutBytes4(e.Data)
}

func decodeLogEntry(r *reader) (LogEntry, error) {
	index, err := r.U64()
	if err != nil {
		return LogEntry{}, err
	}
	data, err := r.Bytes4()
	if err != nil {
		return LogEntry{}, err
	}
	return LogEntry{Index: index, Data: data}, nil
}

// ----------------------------------------------------------------------------
// Heartbeat (20) — grounded on sdk/src/commands/heartbeat.rs and
// node/src/clusters/heartbeats.rs
// ----------------------------------------------------------------------------

type HeartbeatRequest struct {
	Term     uint64
	LeaderID uint64 // 0 = none
}

func (c HeartbeatRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutU64(c.LeaderID)
	return w.Bytes()
}

func DecodeHeartbeatRequest(payload []byte) (HeartbeatRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return HeartbeatRequest{}, err
	}
	leaderID, err := r.U64()
	if err != nil {
		return HeartbeatRequest{}, err
	}
	return HeartbeatRequest{Term: term, LeaderID: leaderID}, nil
}

// ----------------------------------------------------------------------------
// RequestVote (21) — grounded on sdk/src/commands/request_vote.rs. The
// candidate is identified by the connection/Hello identity, not by a field
// on this command. A rejected vote is carried back as a non-OK response
// status rather than a payload field.
// ----------------------------------------------------------------------------

type RequestVoteRequest struct {
	Term uint64
}

func (c RequestVoteRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	return w.Bytes()
}

func DecodeRequestVoteRequest(payload []byte) (RequestVoteRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return RequestVoteRequest{}, err
	}
	return RequestVoteRequest{Term: term}, nil
}

// ----------------------------------------------------------------------------
// SendVote (22) — grounded on sdk/src/commands/send_vote.rs. A voter's
// explicit notification to a candidate that it is casting its vote, used
// alongside the RequestVote response to record the vote locally on both
// sides.
// ----------------------------------------------------------------------------

type SendVoteRequest struct {
	Term        uint64
	CandidateID uint64
}

func (c SendVoteRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutU64(c.CandidateID)
	return w.Bytes()
}

func DecodeSendVoteRequest(payload []byte) (SendVoteRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return SendVoteRequest{}, err
	}
	candidateID, err := r.U64()
	if err != nil {
		return SendVoteRequest{}, err
	}
	return SendVoteRequest{Term: term, CandidateID: candidateID}, nil
}

// ----------------------------------------------------------------------------
// UpdateLeader (23) — grounded on sdk/src/commands/update_leader.rs, payload
// widened per spec.md §6.1 to carry both term and leader_id (the original
// only carries term and relies on connection identity for the leader id).
// ----------------------------------------------------------------------------

type UpdateLeaderRequest struct {
	Term     uint64
	LeaderID uint64
}

func (c UpdateLeaderRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutU64(c.LeaderID)
	return w.Bytes()
}

func DecodeUpdateLeaderRequest(payload []byte) (UpdateLeaderRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return UpdateLeaderRequest{}, err
	}
	leaderID, err := r.U64()
	if err != nil {
		return UpdateLeaderRequest{}, err
	}
	return UpdateLeaderRequest{Term: term, LeaderID: leaderID}, nil
}

// ----------------------------------------------------------------------------
// AppendEntries (24) — grounded on sdk/src/commands/append_entries.rs.
// Replicates the generic cluster-state log, not per-stream messages.
// ----------------------------------------------------------------------------

type AppendEntriesRequest struct {
	Term         uint64
	LeaderID     uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	LeaderCommit uint64
	Entries      []LogEntry
}

func (c AppendEntriesRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutU64(c.LeaderID)
	w.PutU64(c.PrevLogIndex)
	w.PutU64(c.PrevLogTerm)
	w.PutU64(c.LeaderCommit)
	for _, e := range c.Entries {
		encodeLogEntry(w, e)
	}
	return w.Bytes()
}

func DecodeAppendEntriesRequest(payload []byte) (AppendEntriesRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return AppendEntriesRequest{}, err
	}
	leaderID, err := r.U64()
	if err != nil {
		return AppendEntriesRequest{}, err
	}
	prevLogIndex, err := r.U64()
	if err != nil {
		return AppendEntriesRequest{}, err
	}
	prevLogTerm, err := r.U64()
	if err != nil {
		return AppendEntriesRequest{}, err
	}
	leaderCommit, err := r.U64()
	if err != nil {
		return AppendEntriesRequest{}, err
	}
	var entries []LogEntry
	for !r.Done() {
		e, err := decodeLogEntry(r)
		if err != nil {
			return AppendEntriesRequest{}, err
		}
		entries = append(entries, e)
	}
	return AppendEntriesRequest{
		Term: term, LeaderID: leaderID, PrevLogIndex: prevLogIndex,
		PrevLogTerm: prevLogTerm, LeaderCommit: leaderCommit, Entries: entries,
	}, nil
}

// AppendEntriesResponse is this codec's own addition — the base spec
// carries success/failure entirely in the response status, but a follower
// also needs to report its own term back to a stale leader.
type AppendEntriesResponse struct {
	Term    uint64
	Success bool
}

func (c AppendEntriesResponse) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutBool(c.Success)
	return w.Bytes()
}

func DecodeAppendEntriesResponse(payload []byte) (AppendEntriesResponse, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return AppendEntriesResponse{}, err
	}
	success, err := r.Bool()
	if err != nil {
		return AppendEntriesResponse{}, err
	}
	return AppendEntriesResponse{Term: term, Success: success}, nil
}

// ----------------------------------------------------------------------------
// SyncMessages (1100) — grounded on sdk/src/commands/sync_messages.rs. Like
// the original, carries no stream id: it applies to whichever stream the
// surrounding sync session (SyncCreatedStream) has already established.
// ----------------------------------------------------------------------------

type SyncMessagesRequest struct {
	Messages []Message
}

func (c SyncMessagesRequest) Encode() []byte {
	w := newWriter()
	for _, m := range c.Messages {
		w.PutU64(m.Offset)
		w.PutU64(m.ID)
		w.PutBytes4(m.Payload)
	}
	return w.Bytes()
}

func DecodeSyncMessagesRequest(payload []byte) (SyncMessagesRequest, error) {
	r := newReader(payload)
	var messages []Message
	for !r.Done() {
		offset, err := r.U64()
		if err != nil {
			return SyncMessagesRequest{}, err
		}
		id, err := r.U64()
		if err != nil {
			return SyncMessagesRequest{}, err
		}
		payload, err := r.Bytes4()
		if err != nil {
			return SyncMessagesRequest{}, err
		}
		messages = append(messages, Message{Offset: offset, ID: id, Payload: payload})
	}
	return SyncMessagesRequest{Messages: messages}, nil
}

// ----------------------------------------------------------------------------
// SyncCreatedStream (1101) — grounded on sdk/src/commands/sync_created_stream.rs
// ----------------------------------------------------------------------------

type SyncCreatedStreamRequest struct {
	Term     uint64
	StreamID uint64
}

func (c SyncCreatedStreamRequest) Encode() []byte {
	w := newWriter()
	w.PutU64(c.Term)
	w.PutU64(c.StreamID)
	return w.Bytes()
}

func DecodeSyncCreatedStreamRequest(payload []byte) (SyncCreatedStreamRequest, error) {
	r := newReader(payload)
	term, err := r.U64()
	if err != nil {
		return SyncCreatedStreamRequest{}, err
	}
	streamID, err := r.U64()
	if err != nil {
		return SyncCreatedStreamRequest{}, err
	}
	return SyncCreatedStreamRequest{Term: term, StreamID: streamID}, nil
}
