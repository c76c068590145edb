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

package cluster

import (
	"context"
	"net"
	"time"

	sysErrors "streamnode/internal/errors"
	"streamnode/internal/logging"
	"streamnode/internal/streamlog"
	"streamnode/internal/wire"
)

// connReadTimeout bounds how long a connection may sit idle between request
// frames before it is closed, grounded on raft.go's handleConnection
// deadline (there applied per-message; here applied per-frame-wait since
// this transport's connections are long-lived, not one-shot RPCs).
const connReadTimeout = 60 * time.Second

// Dispatcher routes request frames arriving on either the internal peer
// listener or the public client listener to the Coordinator/Streamer,
// generalizing the teacher's original_source/node/src/server/command_handler.rs
// match-by-command-name dispatch into a match-by-wire.Code switch.
type Dispatcher struct {
	coordinator *Coordinator
	streamer    *streamlog.Streamer
	logger      *logging.Logger
}

// NewDispatcher builds a Dispatcher over an already-started Coordinator and
// its Streamer.
func NewDispatcher(coordinator *Coordinator, streamer *streamlog.Streamer) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		streamer:    streamer,
		logger:      logging.NewLogger("dispatcher"),
	}
}

// Serve runs ln's accept loop until ctx is cancelled, handling each
// connection on its own goroutine. It never returns a non-nil error except
// when the listener itself fails outside of cancellation.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			d.logger.Warn("accept failed", "error", err)
			return err
		}
		go d.handleConnection(conn)
	}
}

// session tracks the small amount of per-connection state a multi-request
// session accumulates: the peer identity established by Hello (used as the
// implicit candidate_id on RequestVote and voter id on SendVote, since
// neither command carries an explicit node id of its own) and the stream
// context a SyncCreatedStream establishes for a following SyncMessages.
type session struct {
	peerNodeID            uint64
	helloSeen             bool
	weSupportCompression  bool
	peerSupportsCompression bool

	activeStreamID uint64
	activeTerm     uint64
}

func (d *Dispatcher) handleConnection(conn net.Conn) {
	defer conn.Close()
	var sess session

	for {
		conn.SetDeadline(time.Now().Add(connReadTimeout))
		code, payload, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}

		status, respPayload := d.dispatch(&sess, wire.Code(code), payload)
		if writeErr := wire.WriteResponse(conn, status, respPayload); writeErr != nil {
			return
		}
	}
}

func (d *Dispatcher) dispatch(sess *session, code wire.Code, payload []byte) (uint32, []byte) {
	switch code {
	case wire.CodeHello:
		return d.handleHello(sess, payload)
	case wire.CodePing:
		return wire.StatusOK, nil
	case wire.CodeAppendMessages:
		return d.handleAppendMessages(payload)
	case wire.CodeCreateStream:
		return d.handleCreateStream(payload)
	case wire.CodeDeleteStream:
		return d.handleDeleteStream(payload)
	case wire.CodePollMessages:
		return d.handlePollMessages(payload)
	case wire.CodeGetStreams:
		return statusFor(nil), wire.GetStreamsResponse{Streams: d.streamer.GetStreams()}.Encode()
	case wire.CodeGetNodeState:
		return statusFor(nil), wire.GetNodeStateResponse{State: d.coordinator.ObserveGetNodeState()}.Encode()
	case wire.CodeGetMetadata:
		return statusFor(nil), d.handleGetMetadata()
	case wire.CodeLoadState:
		return d.handleLoadState(payload)
	case wire.CodeHeartbeat:
		return d.handleHeartbeat(payload)
	case wire.CodeRequestVote:
		return d.handleRequestVote(sess, payload)
	case wire.CodeSendVote:
		return d.handleSendVote(sess, payload)
	case wire.CodeUpdateLeader:
		return d.handleUpdateLeader(payload)
	case wire.CodeAppendEntries:
		return d.handleAppendEntries(payload)
	case wire.CodeSyncCreatedStream:
		return d.handleSyncCreatedStream(sess, payload)
	case wire.CodeSyncMessages:
		return d.handleSyncMessages(sess, payload)
	default:
		return statusFor(sysErrors.NewInvalidCommandCode(uint32(code))), nil
	}
}

func (d *Dispatcher) handleHello(sess *session, payload []byte) (uint32, []byte) {
	req, err := wire.DecodeHelloRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	weSupport, err := d.coordinator.ObserveHello(req.Secret)
	if err != nil {
		return statusFor(err), nil
	}
	sess.peerNodeID = req.NodeID
	sess.helloSeen = true
	sess.weSupportCompression = weSupport
	sess.peerSupportsCompression = req.SupportsCompression

	respByte := byte(0)
	if weSupport {
		respByte = 1
	}
	return wire.StatusOK, []byte{respByte}
}

func (d *Dispatcher) handleAppendMessages(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeAppendMessagesRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	committed, err := d.coordinator.AppendMessages(d.coordinator.CurrentTerm(), req.StreamID, req.Messages)
	if err != nil {
		return statusFor(err), nil
	}
	resp := wire.AppendMessagesResponse{StreamID: req.StreamID}
	if len(committed) > 0 {
		resp.FirstOffset = committed[0].Offset
		resp.LastOffset = committed[len(committed)-1].Offset
	}
	return wire.StatusOK, resp.Encode()
}

func (d *Dispatcher) handleCreateStream(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeCreateStreamRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	err = d.coordinator.CreateStream(d.coordinator.CurrentTerm(), req.ID)
	return statusFor(err), nil
}

func (d *Dispatcher) handleDeleteStream(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeDeleteStreamRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	err = d.coordinator.DeleteStream(d.coordinator.CurrentTerm(), req.ID)
	return statusFor(err), nil
}

func (d *Dispatcher) handlePollMessages(payload []byte) (uint32, []byte) {
	req, err := wire.DecodePollMessagesRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	messages, err := d.streamer.PollMessages(req.StreamID, req.Offset, req.Count)
	if err != nil {
		return statusFor(err), nil
	}
	return wire.StatusOK, wire.PollMessagesResponse{Messages: messages}.Encode()
}

// handleGetMetadata builds a ClusterMetadata snapshot: every configured
// peer plus self as the node catalog, and every known stream as the stream
// catalog. Per-stream leader id and name are not tracked independently of
// the cluster-wide leader (this domain has one leader for every stream, not
// a leader-per-stream assignment), so every entry reports the current
// cluster leader and an empty name.
func (d *Dispatcher) handleGetMetadata() []byte {
	peers := d.coordinator.ConfiguredPeers()
	nodes := make([]wire.NodeInfo, 0, len(peers)+1)
	nodes = append(nodes, wire.NodeInfo{
		ID: d.coordinator.SelfID(), Name: "self", Address: "",
	})
	for _, p := range peers {
		nodes = append(nodes, wire.NodeInfo{ID: p.ID, Name: p.Name, Address: p.Address})
	}

	var leaderID uint64
	if id, ok := d.coordinator.election.LeaderID(); ok {
		leaderID = id
	}

	streams := d.streamer.GetStreams()
	catalog := make([]wire.StreamCatalogEntry, 0, len(streams))
	for _, s := range streams {
		catalog = append(catalog, wire.StreamCatalogEntry{ID: s.ID, LeaderID: leaderID})
	}

	return wire.GetMetadataResponse{Metadata: wire.ClusterMetadata{Nodes: nodes, Streams: catalog}}.Encode()
}

func (d *Dispatcher) handleLoadState(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeLoadStateRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	state := d.coordinator.LoadState(req.StartIndex)
	return wire.StatusOK, wire.LoadStateResponse{State: state}.Encode()
}

func (d *Dispatcher) handleHeartbeat(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeHeartbeatRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	return statusFor(d.coordinator.ObserveHeartbeat(req.Term, req.LeaderID)), nil
}

func (d *Dispatcher) handleRequestVote(sess *session, payload []byte) (uint32, []byte) {
	req, err := wire.DecodeRequestVoteRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	if !sess.helloSeen {
		return statusFor(sysErrors.NewInvalidClusterSecret()), nil
	}
	return statusFor(d.coordinator.ObserveRequestVote(req.Term, sess.peerNodeID)), nil
}

func (d *Dispatcher) handleSendVote(sess *session, payload []byte) (uint32, []byte) {
	req, err := wire.DecodeSendVoteRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	if !sess.helloSeen {
		return statusFor(sysErrors.NewInvalidClusterSecret()), nil
	}
	return statusFor(d.coordinator.ObserveSendVote(req.Term, req.CandidateID, sess.peerNodeID)), nil
}

func (d *Dispatcher) handleUpdateLeader(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeUpdateLeaderRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	return statusFor(d.coordinator.ObserveUpdateLeader(req.Term, req.LeaderID)), nil
}

// handleAppendEntries always answers with status OK: a rejected append is a
// normal negative acknowledgement carried in AppendEntriesResponse.Success,
// not a transport-level error, mirroring PeerLink.AppendEntries's decode
// expectation.
func (d *Dispatcher) handleAppendEntries(payload []byte) (uint32, []byte) {
	req, err := wire.DecodeAppendEntriesRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	resp := d.coordinator.ObserveAppendEntries(req.Term, req.LeaderID, req.PrevLogIndex, req.PrevLogTerm, req.LeaderCommit, req.Entries)
	return wire.StatusOK, resp.Encode()
}

func (d *Dispatcher) handleSyncCreatedStream(sess *session, payload []byte) (uint32, []byte) {
	req, err := wire.DecodeSyncCreatedStreamRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	sess.activeStreamID = req.StreamID
	sess.activeTerm = req.Term
	return statusFor(d.coordinator.ObserveSyncCreatedStream(req.Term, req.StreamID)), nil
}

// handleSyncMessages applies to whichever stream the session's last
// SyncCreatedStream established. senderCompressed mirrors PeerLink.SyncMessages's
// own negotiation check, evaluated from the other side: the sender only
// compressed a message if it advertised compression support in its own Hello
// request *and* this node's Hello response told it this node supports
// compression too.
func (d *Dispatcher) handleSyncMessages(sess *session, payload []byte) (uint32, []byte) {
	req, err := wire.DecodeSyncMessagesRequest(payload)
	if err != nil {
		return statusFor(sysErrors.NewInvalidCommand(err.Error())), nil
	}
	senderCompressed := sess.peerSupportsCompression && sess.weSupportCompression
	return statusFor(d.coordinator.ObserveSyncMessages(sess.activeStreamID, req.Messages, senderCompressed)), nil
}

// statusFor maps err onto a response status code: StatusOK for nil, the
// error's own SystemError code when it has one, or the generic IoError code
// for anything else (a decode/runtime error this package did not itself
// construct as a SystemError).
func statusFor(err error) uint32 {
	if err == nil {
		return wire.StatusOK
	}
	if code := sysErrors.GetCode(err); code != 0 {
		return uint32(code)
	}
	return uint32(sysErrors.IoError)
}
