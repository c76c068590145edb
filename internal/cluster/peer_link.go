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
Package cluster implements the Peer Link and Cluster Coordinator: the
per-remote-node connection lifecycle and the single process-wide object that
owns the peer set, the election manager, and the streamer, grounded on
node/src/clusters/nodes/node.rs, node/src/clusters/nodes/clients/node_client.rs
and node/src/clusters/elections/cluster_elections.rs.
*/
package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	sysErrors "streamnode/internal/errors"
	"streamnode/internal/logging"
	"streamnode/internal/metrics"
	"streamnode/internal/wire"
)

// PeerLink is this node's view of one other cluster member: a target
// address, an optional live transport handle, a connected flag, and the
// last term/leader this node observed for that peer. It is created once at
// node boot and persists for the process, cycling between disconnected and
// connected — there is no terminal state.
type PeerLink struct {
	ID      uint64
	Name    string
	Address string

	selfID   uint64
	selfName string
	secret   string

	reconnectionRetries   uint32
	reconnectionIntervalMS uint64

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	term      uint64
	leaderID  uint64
	hasLeader bool

	compressor              *metrics.Compressor
	peerSupportsCompression bool

	logger *logging.Logger
}

// NewPeerLink constructs a PeerLink for a non-self cluster member.
func NewPeerLink(id uint64, name, address string, selfID uint64, selfName, secret string, reconnectionRetries uint32, reconnectionIntervalMS uint64) *PeerLink {
	return &PeerLink{
		ID:                     id,
		Name:                   name,
		Address:                address,
		selfID:                 selfID,
		selfName:               selfName,
		secret:                 secret,
		reconnectionRetries:    reconnectionRetries,
		reconnectionIntervalMS: reconnectionIntervalMS,
		logger:                 logging.NewLogger("peer-link").With("peer_id", id, "peer_name", name),
	}
}

// SetCompressor sets the codec this link advertises and uses for outbound
// SyncMessages batches. A nil or disabled Compressor means this link never
// advertises compression support, regardless of what the peer offers.
func (p *PeerLink) SetCompressor(c *metrics.Compressor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compressor = c
}

// IsConnected reports this link's current connection state.
func (p *PeerLink) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// SetLeader records the last leader/term this node told this peer about,
// independent of the shared Election Manager — used so a heartbeat sender
// can report the locally-known leader without taking the election lock.
func (p *PeerLink) SetLeader(term, leaderID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.term = term
	p.leaderID = leaderID
	p.hasLeader = true
}

// Connect dials the peer, retrying up to reconnectionRetries times with
// reconnectionIntervalMS between attempts, then sends a Hello handshake
// carrying the cluster secret and this node's identity/term/leader view. A
// failed Hello propagates as a connection error and the link stays
// disconnected.
func (p *PeerLink) Connect(ctx context.Context) error {
	if p.IsConnected() {
		p.logger.Warn("already connected, ignoring duplicate connect")
		return nil
	}

	var lastErr error
	var conn net.Conn
	for attempt := uint32(0); ; attempt++ {
		select {
		case <-ctx.Done():
			return sysErrors.NewCannotConnectToClusterNode(p.Address, ctx.Err())
		default:
		}

		p.logger.Info("connecting", "address", p.Address, "attempt", attempt)
		var err error
		conn, err = net.DialTimeout("tcp", p.Address, 5*time.Second)
		if err == nil {
			break
		}
		lastErr = err
		if attempt >= p.reconnectionRetries {
			return sysErrors.NewCannotConnectToClusterNode(p.Address, lastErr)
		}
		p.logger.Info("retrying connect", "address", p.Address,
			"attempt", attempt+1, "max_attempts", p.reconnectionRetries,
			"interval_ms", p.reconnectionIntervalMS)
		select {
		case <-ctx.Done():
			return sysErrors.NewCannotConnectToClusterNode(p.Address, ctx.Err())
		case <-time.After(time.Duration(p.reconnectionIntervalMS) * time.Millisecond):
		}
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	term, leaderID := p.term, p.leaderID
	p.mu.Unlock()

	p.mu.Lock()
	compressionSupported := p.compressor != nil && p.compressor.Enabled()
	p.mu.Unlock()

	p.logger.Info("connected, sending hello", "address", p.Address)
	respPayload, err := p.sendRequest(wire.CodeHello, wire.HelloRequest{
		Secret: hashSecret(p.secret), Name: p.selfName, NodeID: p.selfID, Term: term, LeaderID: leaderID,
		SupportsCompression: compressionSupported,
	}.Encode())
	if err != nil {
		p.logger.Warn("hello handshake failed", "address", p.Address, "error", err)
		p.setDisconnected()
		return err
	}

	// The Hello response's single payload byte, when present, is 1 if the
	// peer also supports compression. Older peers answer with an empty
	// payload, which is treated as "unsupported".
	p.mu.Lock()
	p.peerSupportsCompression = len(respPayload) > 0 && respPayload[0] == 1
	p.mu.Unlock()
	return nil
}

// Disconnect closes the transport and marks the link disconnected. A
// no-op if already disconnected.
func (p *PeerLink) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.connected = false
	return nil
}

func (p *PeerLink) setDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.connected = false
}

// Heartbeat sends a Heartbeat request reporting term/leaderID. A send
// failure flips the link to disconnected and returns the error, so the
// owning coordinator can schedule a reconnect.
func (p *PeerLink) Heartbeat(term, leaderID uint64) error {
	_, err := p.sendRequest(wire.CodeHeartbeat, wire.HeartbeatRequest{Term: term, LeaderID: leaderID}.Encode())
	if err != nil {
		p.setDisconnected()
		return err
	}
	return nil
}

// RequestVote asks this peer to cast a vote for self (the connection
// identity) in term.
func (p *PeerLink) RequestVote(term uint64) error {
	_, err := p.sendRequest(wire.CodeRequestVote, wire.RequestVoteRequest{Term: term}.Encode())
	return err
}

// UpdateLeader tells this peer that self has become leader for term.
func (p *PeerLink) UpdateLeader(term, leaderID uint64) error {
	_, err := p.sendRequest(wire.CodeUpdateLeader, wire.UpdateLeaderRequest{Term: term, LeaderID: leaderID}.Encode())
	return err
}

// AppendEntries replicates cluster-state log entries to this peer.
func (p *PeerLink) AppendEntries(term, leaderID, prevLogIndex, prevLogTerm, leaderCommit uint64, entries []wire.LogEntry) (wire.AppendEntriesResponse, error) {
	payload, err := p.sendRequest(wire.CodeAppendEntries, wire.AppendEntriesRequest{
		Term: term, LeaderID: leaderID, PrevLogIndex: prevLogIndex, PrevLogTerm: prevLogTerm,
		LeaderCommit: leaderCommit, Entries: entries,
	}.Encode())
	if err != nil {
		return wire.AppendEntriesResponse{}, err
	}
	return wire.DecodeAppendEntriesResponse(payload)
}

// SyncCreatedStream tells this peer to create stream_id locally, used both
// to replicate a brand-new stream and — per this implementation's
// convention — to establish the active stream context a following
// SyncMessages call applies to.
func (p *PeerLink) SyncCreatedStream(term, streamID uint64) error {
	_, err := p.sendRequest(wire.CodeSyncCreatedStream, wire.SyncCreatedStreamRequest{Term: term, StreamID: streamID}.Encode())
	return err
}

// SyncMessages replicates already-assigned messages for streamID to this
// peer. The wire's SyncMessages command carries no stream id of its own
// (spec.md §6.1), so this call first sends a SyncCreatedStream framing to
// establish which stream the batch belongs to, then the message batch
// itself, both over the same link's single in-flight-request discipline.
//
// When both ends negotiated compression on Hello, each message's payload is
// compressed independently (self-tagged, per metrics.Compressor) before
// sending, so a receiver that didn't expect compression never
// misinterprets a payload it can't decode.
func (p *PeerLink) SyncMessages(term, streamID uint64, messages []wire.Message) error {
	if err := p.SyncCreatedStream(term, streamID); err != nil {
		return err
	}

	p.mu.Lock()
	useCompression := p.compressor != nil && p.compressor.Enabled() && p.peerSupportsCompression
	compressor := p.compressor
	p.mu.Unlock()

	if useCompression {
		compressed := make([]wire.Message, len(messages))
		for i, m := range messages {
			payload, err := compressor.Compress(m.Payload)
			if err != nil {
				return err
			}
			compressed[i] = wire.Message{Offset: m.Offset, ID: m.ID, Payload: payload}
		}
		messages = compressed
	}

	_, err := p.sendRequest(wire.CodeSyncMessages, wire.SyncMessagesRequest{Messages: messages}.Encode())
	return err
}

// GetStreams asks this peer for its stream catalog summary.
func (p *PeerLink) GetStreams() ([]wire.StreamInfo, error) {
	payload, err := p.sendRequest(wire.CodeGetStreams, nil)
	if err != nil {
		return nil, err
	}
	resp, err := wire.DecodeGetStreamsResponse(payload)
	if err != nil {
		return nil, err
	}
	return resp.Streams, nil
}

// GetNodeState asks this peer for its election/replication state.
func (p *PeerLink) GetNodeState() (wire.NodeState, error) {
	payload, err := p.sendRequest(wire.CodeGetNodeState, nil)
	if err != nil {
		return wire.NodeState{}, err
	}
	resp, err := wire.DecodeGetNodeStateResponse(payload)
	if err != nil {
		return wire.NodeState{}, err
	}
	return resp.State, nil
}

// sendRequest writes a request frame and, since every command on this
// transport is request/reply, reads the matching response frame. Returns
// ClientDisconnected if the link has no live transport.
func (p *PeerLink) sendRequest(code wire.Code, payload []byte) ([]byte, error) {
	p.mu.Lock()
	conn := p.conn
	connected := p.connected
	p.mu.Unlock()

	if !connected || conn == nil {
		return nil, sysErrors.NewClientDisconnected()
	}

	conn.SetDeadline(time.Now().Add(10 * time.Second))
	if err := wire.WriteRequest(conn, uint32(code), payload); err != nil {
		return nil, sysErrors.NewSendRequestFailed(err)
	}

	status, respPayload, err := wire.ReadResponse(conn)
	if err != nil {
		return nil, sysErrors.NewCannotReadResponse(err)
	}
	if status != wire.StatusOK {
		return nil, sysErrors.NewErrorResponse(status)
	}
	return respPayload, nil
}

func (p *PeerLink) String() string {
	return fmt.Sprintf("PeerLink{id=%d name=%s address=%s connected=%t}", p.ID, p.Name, p.Address, p.IsConnected())
}
