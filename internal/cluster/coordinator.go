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
	"crypto/subtle"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"streamnode/internal/config"
	"streamnode/internal/election"
	sysErrors "streamnode/internal/errors"
	"streamnode/internal/logging"
	"streamnode/internal/metrics"
	"streamnode/internal/streamlog"
	"streamnode/internal/wire"
)

// Role is this node's current position in the cluster's election state
// machine.
type Role int32

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// heartbeatMissedFactor is how many missed heartbeat intervals the failure
// detector tolerates before declaring the leader lost, grounded on
// node/src/clusters/heartbeats.rs's plain now-last_heartbeat_at staleness
// check (the original compares against exactly one interval; a factor of
// three absorbs ordinary scheduling jitter without changing the algorithm's
// shape).
const heartbeatMissedFactor = 3

const infoPublishInterval = 30 * time.Second

// stateCmd tags the opaque payload of a generic cluster-state LogEntry.
type stateCmd byte

const (
	stateCmdDeleteStream stateCmd = 1
)

// Coordinator is the single process-wide owner of the peer set, the
// election manager, and the streamer, grounded on
// original_source/node/src/clusters/cluster_elections.rs,
// node/src/clusters/heartbeats.rs and node/src/clusters/streams/*.rs. It
// drives the election loop, the heartbeat failure detector, the info
// publisher, and the quorum-gated replication path for mutating client
// commands.
type Coordinator struct {
	selfID      uint64
	selfName    string
	selfAddress string
	secret      string

	requiredAcks        wire.RequiredAcknowledgements
	heartbeatIntervalMS uint64

	peersMu sync.RWMutex
	peers   map[uint64]*PeerLink

	election   *election.Manager
	streamer   *streamlog.Streamer
	audit      *AuditLog
	compressor *metrics.Compressor
	discovery  *metrics.DiscoveryService

	role atomic.Int32

	stateMu     sync.Mutex
	commitIndex uint64
	lastApplied uint64
	entries     []wire.LogEntry

	electionTrigger chan struct{}

	group  *errgroup.Group
	cancel context.CancelFunc

	logger *logging.Logger
}

// NewCoordinator builds a Coordinator from cfg and a Streamer the caller has
// already constructed (so tests can point it at a temp directory, and so a
// restart can LoadExisting before the Coordinator starts driving traffic).
func NewCoordinator(cfg *config.Config, streamer *streamlog.Streamer) (*Coordinator, error) {
	nodesCount := uint64(len(cfg.Cluster.Nodes) + 1)

	var acks wire.RequiredAcknowledgements
	switch cfg.Cluster.RequiredAcknowledgements {
	case "none":
		acks = wire.AckNone
	case "leader":
		acks = wire.AckLeader
	case "majority":
		acks = wire.AckMajority
	default:
		return nil, sysErrors.NewConfigInvalid("cluster.required_acknowledgements must be one of none|leader|majority")
	}

	compressor, err := metrics.NewCompressor(cfg.Compression)
	if err != nil {
		return nil, sysErrors.NewConfigInvalid(err.Error())
	}

	c := &Coordinator{
		selfID:              cfg.Node.ID,
		selfName:            cfg.Node.Name,
		selfAddress:         cfg.Node.Address,
		secret:              cfg.Cluster.Secret,
		requiredAcks:        acks,
		heartbeatIntervalMS: cfg.Cluster.HeartbeatIntervalMS,
		peers:               make(map[uint64]*PeerLink),
		election:            election.NewManager(cfg.Node.ID, nodesCount, cfg.Cluster.ElectionTimeoutFromMS, cfg.Cluster.ElectionTimeoutToMS),
		streamer:            streamer,
		audit:               NewAuditLog(256),
		compressor:          compressor,
		discovery: metrics.NewDiscoveryService(metrics.DiscoveryConfig{
			NodeID:      cfg.Node.ID,
			Name:        cfg.Node.Name,
			Address:     cfg.Node.Address,
			ServiceName: cfg.Discovery.ServiceName,
			Enabled:     cfg.Discovery.Enabled,
		}),
		electionTrigger: make(chan struct{}, 1),
		logger:          logging.NewLogger("coordinator").With("self_id", cfg.Node.ID),
	}

	for _, n := range cfg.Cluster.Nodes {
		if n.ID == c.selfID {
			continue
		}
		addr := n.InternalAddress
		if addr == "" {
			addr = n.PublicAddress
		}
		link := NewPeerLink(n.ID, n.Name, addr, c.selfID, c.selfName, c.secret,
			cfg.Cluster.ReconnectionRetries, cfg.Cluster.ReconnectionIntervalMS)
		link.SetCompressor(compressor)
		c.peers[n.ID] = link
	}

	return c, nil
}

// hashSecret digests a cluster secret with blake2b so it is never compared
// or logged in the clear, including over the Hello handshake on the wire.
func hashSecret(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return string(sum[:])
}

// VerifySecret reports whether hashed equals this cluster's own secret
// digest, in constant time. Used by ObserveHello, the incoming-connection
// Hello handler.
func (c *Coordinator) VerifySecret(hashed string) bool {
	want := hashSecret(c.secret)
	return subtle.ConstantTimeCompare([]byte(hashed), []byte(want)) == 1
}

// SelfID returns this node's id.
func (c *Coordinator) SelfID() uint64 { return c.selfID }

// Role returns this node's current election role.
func (c *Coordinator) Role() Role { return Role(c.role.Load()) }

// IsLeader reports whether this node currently believes itself to be leader.
func (c *Coordinator) IsLeader() bool { return c.Role() == Leader }

// CurrentTerm returns this node's current election term, for a dispatcher
// handling a client command that (unlike a peer command) carries no term
// field of its own.
func (c *Coordinator) CurrentTerm() uint64 { return c.election.CurrentTerm() }

// ConfiguredPeers returns a snapshot of every peer this node is configured
// to connect to, for GetMetadata's node catalog.
func (c *Coordinator) ConfiguredPeers() []PeerInfo {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	out := make([]PeerInfo, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, PeerInfo{ID: p.ID, Name: p.Name, Address: p.Address})
	}
	return out
}

// PeerInfo is a read-only summary of one configured peer, used by the
// dispatcher to answer GetMetadata without reaching into Coordinator's
// internal peer map.
type PeerInfo struct {
	ID      uint64
	Name    string
	Address string
}

func (c *Coordinator) setRole(r Role) { c.role.Store(int32(r)) }

// connectedPeerCount returns how many configured peers currently have a live
// transport.
func (c *Coordinator) connectedPeerCount() int {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	n := 0
	for _, p := range c.peers {
		if p.IsConnected() {
			n++
		}
	}
	return n
}

// IsHealthy reports whether enough peers are connected (counting self) to
// reach quorum.
func (c *Coordinator) IsHealthy() bool {
	return uint64(c.connectedPeerCount()+1) >= c.election.Quorum()
}

// VerifyIsHealthy returns UnhealthyCluster if quorum is unreachable.
func (c *Coordinator) VerifyIsHealthy() error {
	connected := c.connectedPeerCount() + 1
	if uint64(connected) < c.election.Quorum() {
		return sysErrors.NewUnhealthyCluster(connected, int(c.election.Quorum()))
	}
	return nil
}

// VerifyIsLeader returns an error unless this node is the current leader.
func (c *Coordinator) VerifyIsLeader() error {
	if !c.IsLeader() {
		return sysErrors.NewLeaderRejected()
	}
	return nil
}

// Start connects every configured peer link and launches the coordinator's
// background loops (election, heartbeat failure detector, leader heartbeat
// sender, info publisher) under one cancellable errgroup, generalizing the
// teacher's ad hoc wg+stopCh pair (internal/cluster/raft.go) into the
// errgroup idiom.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.discovery.Advertise(); err != nil {
		c.logger.Warn("mdns advertise failed, continuing without it", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	c.group = g
	c.cancel = cancel

	c.peersMu.RLock()
	links := make([]*PeerLink, 0, len(c.peers))
	for _, p := range c.peers {
		links = append(links, p)
	}
	c.peersMu.RUnlock()

	for _, link := range links {
		link := link
		g.Go(func() error {
			c.supervisePeer(gctx, link)
			return nil
		})
	}

	g.Go(func() error { c.runElectionLoop(gctx); return nil })
	g.Go(func() error { c.runHeartbeatWatcher(gctx); return nil })
	g.Go(func() error { c.runLeaderHeartbeatSender(gctx); return nil })
	g.Go(func() error { c.runInfoPublisher(gctx); return nil })

	c.triggerElection()
	return nil
}

// Stop cancels every background loop, waits for them to return, and
// disconnects all peer links.
func (c *Coordinator) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.discovery.Shutdown(); err != nil {
		c.logger.Warn("mdns shutdown failed", "error", err)
	}
	var err error
	if c.group != nil {
		err = c.group.Wait()
	}
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	for _, p := range c.peers {
		p.Disconnect()
	}
	return err
}

func (c *Coordinator) triggerElection() {
	select {
	case c.electionTrigger <- struct{}{}:
	default:
	}
}

// supervisePeer keeps one peer link connected for the coordinator's
// lifetime: PeerLink.Connect already carries its own bounded retry budget,
// so once that budget is exhausted this loop waits one reconnection
// interval and tries the whole bounded attempt again, cycling indefinitely
// per spec.md §4.6 ("persists for process lifetime").
func (c *Coordinator) supervisePeer(ctx context.Context, link *PeerLink) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !link.IsConnected() {
			if err := link.Connect(ctx); err != nil {
				c.logger.Warn("peer connect attempt exhausted", "peer_id", link.ID, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			c.audit.Record(EventPeerConnected, link.ID, c.election.CurrentTerm(), link.Address)
			c.triggerElection()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// runElectionLoop waits for a trigger (sent at boot, whenever a peer
// connects, and whenever the failure detector clears a stale leader) and
// runs one election attempt per trigger.
func (c *Coordinator) runElectionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.electionTrigger:
			c.attemptElection(ctx)
		}
	}
}

// attemptElection is the four-step loop from spec.md §4.7 / cluster_elections.rs's
// start_election: check health, check for an already-known leader, become a
// candidate and run one term, then branch on the outcome.
func (c *Coordinator) attemptElection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !c.IsHealthy() {
			c.logger.Warn("cluster unhealthy, deferring election")
			return
		}
		if leaderID, ok := c.election.LeaderID(); ok && leaderID != 0 {
			c.setRole(Follower)
			return
		}

		c.setRole(Candidate)
		term := c.election.NextTerm()
		c.logger.Info("starting election attempt", "term", term)
		result := c.election.StartElection(ctx, term)

		switch result.Kind {
		case election.LeaderElected:
			if c.becomeLeader(term, result.LeaderID) {
				return
			}
			c.election.RemoveLeader()
			c.logger.Info("leader announcement did not reach quorum, retrying election", "term", term)

		case election.TermChanged:
			c.election.SetTerm(result.Term)
			c.setRole(Follower)
			c.audit.Record(EventTermChanged, c.selfID, result.Term, "observed higher term during candidacy")
			return

		case election.NoLeaderElected:
			if err := c.election.Vote(term, c.selfID, c.selfID); err != nil {
				c.logger.Warn("self-vote rejected", "term", term, "error", err)
				return
			}
			c.requestVotesFromPeers(ctx, term)

			if c.election.HasMajorityVotes(term, c.selfID) {
				if err := c.election.SetLeader(term, c.selfID); err == nil {
					if c.becomeLeader(term, c.selfID) {
						return
					}
				}
			}
			c.election.RemoveLeader()
			c.logger.Info("split vote, retrying election", "term", term)
		}
	}
}

// requestVotesFromPeers fans RequestVote out to every connected peer
// concurrently. A successful (status-OK) response is treated as a granted
// vote and recorded locally via Vote, rather than waiting for a separate
// SendVote round trip — the wire's SendVote command remains available for a
// peer to push an unsolicited vote, but this path doesn't depend on it.
func (c *Coordinator) requestVotesFromPeers(ctx context.Context, term uint64) {
	c.peersMu.RLock()
	links := make([]*PeerLink, 0, len(c.peers))
	for _, p := range c.peers {
		links = append(links, p)
	}
	c.peersMu.RUnlock()

	var wg sync.WaitGroup
	for _, link := range links {
		link := link
		if !link.IsConnected() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.RequestVote(term); err != nil {
				c.logger.Warn("request vote failed", "peer_id", link.ID, "term", term, "error", err)
				return
			}
			if err := c.election.Vote(term, c.selfID, link.ID); err != nil {
				c.logger.Warn("recording granted vote failed", "peer_id", link.ID, "term", term, "error", err)
			}
		}()
	}
	wg.Wait()
}

// becomeLeader announces term/leaderID to every connected peer via
// UpdateLeader and only transitions this node to Leader once a quorum of
// nodes (self included) has acknowledged — spec.md's "if quorum peers
// acknowledged, become Leader; on any failure, remove_leader() and continue
// loop", mirrored from cluster_elections.rs's update_leader, which returns
// Err when updated_nodes_count < quorum and whose caller only commits the
// Leader state on Ok. Returns whether the transition was committed.
func (c *Coordinator) becomeLeader(term, leaderID uint64) bool {
	c.peersMu.RLock()
	links := make([]*PeerLink, 0, len(c.peers))
	for _, p := range c.peers {
		links = append(links, p)
	}
	c.peersMu.RUnlock()

	var acked atomic.Uint64
	acked.Store(1) // self acknowledges its own leadership unconditionally

	var wg sync.WaitGroup
	for _, link := range links {
		link := link
		if !link.IsConnected() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.UpdateLeader(term, leaderID); err != nil {
				c.logger.Warn("update leader failed", "peer_id", link.ID, "error", err)
				return
			}
			link.SetLeader(term, leaderID)
			acked.Add(1)
		}()
	}
	wg.Wait()

	quorum := c.election.Quorum()
	if acked.Load() < quorum {
		c.logger.Warn("leader announcement did not reach quorum",
			"term", term, "leader_id", leaderID, "acked", acked.Load(), "quorum", quorum)
		return false
	}

	c.setRole(Leader)
	c.audit.Record(EventLeaderElected, leaderID, term, "")
	c.logger.Info("became leader", "term", term, "leader_id", leaderID, "acked", acked.Load())
	return true
}

// runHeartbeatWatcher is the failure detector: it periodically compares
// "now" against the last observed leader heartbeat, and if the leader (a
// leader other than self) has gone quiet for too long, clears it and
// triggers a new election — grounded on
// original_source/node/src/clusters/heartbeats.rs's listen loop.
func (c *Coordinator) runHeartbeatWatcher(ctx context.Context) {
	interval := time.Duration(c.heartbeatIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	deadline := interval * heartbeatMissedFactor

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		leaderID, ok := c.election.LeaderID()
		if !ok || leaderID == c.selfID {
			continue
		}
		last := c.election.LastHeartbeat()
		if last.IsZero() {
			continue
		}
		if time.Since(last) > deadline {
			c.logger.Warn("leader heartbeat stale, clearing leader", "leader_id", leaderID, "since", time.Since(last))
			c.election.RemoveLeader()
			c.setRole(Follower)
			c.triggerElection()
		}
	}
}

// runLeaderHeartbeatSender periodically pushes a Heartbeat to every peer
// while this node believes itself to be leader.
func (c *Coordinator) runLeaderHeartbeatSender(ctx context.Context) {
	interval := time.Duration(c.heartbeatIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.IsLeader() {
			continue
		}
		term := c.election.CurrentTerm()

		c.peersMu.RLock()
		links := make([]*PeerLink, 0, len(c.peers))
		for _, p := range c.peers {
			links = append(links, p)
		}
		c.peersMu.RUnlock()

		for _, link := range links {
			if !link.IsConnected() {
				continue
			}
			if err := link.Heartbeat(term, c.selfID); err != nil {
				c.logger.Warn("heartbeat send failed", "peer_id", link.ID, "error", err)
			}
		}
	}
}

// runInfoPublisher periodically logs a cluster-summary banner, grounded on
// original_source/node/src/clusters/cluster_info.rs's SEPARATOR-bracketed
// listen loop.
func (c *Coordinator) runInfoPublisher(ctx context.Context) {
	ticker := time.NewTicker(infoPublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.logger.Info("================ cluster info ================")
		c.logger.Info("node", "id", c.selfID, "role", c.Role().String(), "term", c.election.CurrentTerm())
		leaderID, hasLeader := c.election.LeaderID()
		c.logger.Info("leader", "known", hasLeader, "leader_id", leaderID)
		c.logger.Info("peers", "connected", c.connectedPeerCount(), "configured", len(c.peers))
		c.logger.Info("streams", "count", len(c.streamer.GetStreams()))
		c.logger.Info("================================================")
	}
}

// ----------------------------------------------------------------------------
// Replication path for mutating client commands — grounded on
// original_source/node/src/clusters/streams/{cluster_streams,messages,state}.rs.
// Every path: validate health+leadership+term, apply locally, fan out to
// peers, and (only when RequiredAcknowledgements == Majority) gate success
// on reaching quorum acks — reverting the local application on failure where
// a revert is possible.
// ----------------------------------------------------------------------------

// AppendMessages validates leadership, appends ms to streamID locally, and
// replicates the committed batch to every peer. It returns the committed
// messages once the configured acknowledgement policy is satisfied.
func (c *Coordinator) AppendMessages(term, streamID uint64, ms []wire.AppendableMessage) ([]wire.Message, error) {
	if err := c.validateLeadership(term); err != nil {
		return nil, err
	}

	committed, _, err := c.streamer.AppendMessages(streamID, ms)
	if err != nil {
		return nil, err
	}

	successes := 1
	c.forEachConnectedPeer(func(link *PeerLink) {
		if err := link.SyncMessages(term, streamID, committed); err != nil {
			c.logger.Warn("sync messages failed", "peer_id", link.ID, "stream_id", streamID, "error", err)
			return
		}
		successes++
	})

	// AppendMessages has no revert path on a failed majority: the teacher's
	// own sync_state carries a "TODO: Write-ahead log to revert" at this
	// exact point (original_source/node/src/clusters/streams/messages.rs),
	// so a local append that fails to reach quorum stays applied here too.
	if c.requiredAcks == wire.AckMajority && uint64(successes) < c.election.Quorum() {
		return nil, sysErrors.NewCannotSyncState("majority acknowledgement not reached for AppendMessages")
	}
	return committed, nil
}

// CreateStream validates leadership, creates streamID locally, and
// replicates the creation to every peer, best-effort reverting the local
// creation if a required majority is not reached.
func (c *Coordinator) CreateStream(term, streamID uint64) error {
	if err := c.validateLeadership(term); err != nil {
		return err
	}

	if err := c.streamer.CreateStream(streamID); err != nil {
		return err
	}

	successes := 1
	c.forEachConnectedPeer(func(link *PeerLink) {
		if err := link.SyncCreatedStream(term, streamID); err != nil {
			c.logger.Warn("sync created stream failed", "peer_id", link.ID, "stream_id", streamID, "error", err)
			return
		}
		successes++
	})

	if c.requiredAcks == wire.AckMajority && uint64(successes) < c.election.Quorum() {
		if revertErr := c.streamer.DeleteStream(streamID); revertErr != nil {
			c.logger.Warn("revert create stream failed", "stream_id", streamID, "error", revertErr)
		}
		return sysErrors.NewCannotSyncState("majority acknowledgement not reached for CreateStream")
	}
	c.audit.Record(EventStreamCreated, c.selfID, term, "")
	return nil
}

// DeleteStream validates leadership, deletes streamID locally, and
// replicates the deletion through the generic cluster-state log (the wire
// protocol has no dedicated sync-deletion command, unlike SyncCreatedStream
// for creation).
func (c *Coordinator) DeleteStream(term, streamID uint64) error {
	if err := c.validateLeadership(term); err != nil {
		return err
	}

	if err := c.streamer.DeleteStream(streamID); err != nil {
		return err
	}

	if err := c.appendState(term, encodeDeleteStreamCommand(streamID)); err != nil {
		return err
	}
	c.audit.Record(EventStreamDeleted, c.selfID, term, "")
	return nil
}

// appendState appends data as a new LogEntry to the generic cluster-state
// log and replicates it via AppendEntries, gating success on the configured
// acknowledgement policy just like the stream-specific paths.
func (c *Coordinator) appendState(term uint64, data []byte) error {
	c.stateMu.Lock()
	index := uint64(len(c.entries)) + 1
	entry := wire.LogEntry{Index: index, Data: data}
	prevLogIndex := c.lastApplied
	prevLogTerm := term
	c.entries = append(c.entries, entry)
	leaderCommit := index
	c.stateMu.Unlock()

	successes := 1
	c.forEachConnectedPeer(func(link *PeerLink) {
		resp, err := link.AppendEntries(term, c.selfID, prevLogIndex, prevLogTerm, leaderCommit, []wire.LogEntry{entry})
		if err != nil {
			c.logger.Warn("append entries failed", "peer_id", link.ID, "error", err)
			return
		}
		if resp.Success {
			successes++
		}
	})

	if c.requiredAcks == wire.AckMajority && uint64(successes) < c.election.Quorum() {
		return sysErrors.NewCannotSyncState("majority acknowledgement not reached for state append")
	}

	c.stateMu.Lock()
	c.commitIndex = index
	c.lastApplied = index
	c.stateMu.Unlock()
	return nil
}

func encodeDeleteStreamCommand(streamID uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(stateCmdDeleteStream)
	binary.LittleEndian.PutUint64(buf[1:], streamID)
	return buf
}

func decodeDeleteStreamCommand(data []byte) (uint64, bool) {
	if len(data) != 9 || stateCmd(data[0]) != stateCmdDeleteStream {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[1:]), true
}

// ApplyLogEntry applies one replicated cluster-state entry on a follower,
// the counterpart to the leader-side appendState/DeleteStream path.
func (c *Coordinator) ApplyLogEntry(entry wire.LogEntry) error {
	if streamID, ok := decodeDeleteStreamCommand(entry.Data); ok {
		if err := c.streamer.DeleteStream(streamID); err != nil && sysErrors.GetCode(err) != sysErrors.InvalidStreamId {
			return err
		}
	}

	c.stateMu.Lock()
	c.entries = append(c.entries, entry)
	if entry.Index > c.lastApplied {
		c.lastApplied = entry.Index
	}
	if entry.Index > c.commitIndex {
		c.commitIndex = entry.Index
	}
	c.stateMu.Unlock()
	return nil
}

func (c *Coordinator) validateLeadership(term uint64) error {
	if err := c.VerifyIsHealthy(); err != nil {
		return err
	}
	if err := c.VerifyIsLeader(); err != nil {
		return err
	}
	if term != c.election.CurrentTerm() {
		return sysErrors.NewInvalidTerm(c.election.CurrentTerm())
	}
	return nil
}

func (c *Coordinator) forEachConnectedPeer(fn func(*PeerLink)) {
	c.peersMu.RLock()
	links := make([]*PeerLink, 0, len(c.peers))
	for _, p := range c.peers {
		links = append(links, p)
	}
	c.peersMu.RUnlock()

	var wg sync.WaitGroup
	for _, link := range links {
		link := link
		if !link.IsConnected() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(link)
		}()
	}
	wg.Wait()
}

// ----------------------------------------------------------------------------
// Observer hooks — called by the (not yet built) request dispatcher when an
// incoming peer command arrives on this node's listener.
// ----------------------------------------------------------------------------

// ObserveHeartbeat records a heartbeat received from leaderID for term.
func (c *Coordinator) ObserveHeartbeat(term, leaderID uint64) error {
	if err := c.election.SetLeader(term, leaderID); err != nil {
		return err
	}
	c.election.SetLastHeartbeat(time.Now())
	c.setRole(roleFor(c.selfID, leaderID))
	return nil
}

// ObserveUpdateLeader records an explicit leader announcement from a peer
// that just won an election.
func (c *Coordinator) ObserveUpdateLeader(term, leaderID uint64) error {
	if err := c.election.SetLeader(term, leaderID); err != nil {
		return err
	}
	c.election.SetLastHeartbeat(time.Now())
	c.setRole(roleFor(c.selfID, leaderID))
	c.audit.Record(EventLeaderElected, leaderID, term, "observed via UpdateLeader")
	return nil
}

// ObserveRequestVote handles an incoming vote request from candidateID.
func (c *Coordinator) ObserveRequestVote(term, candidateID uint64) error {
	return c.election.Vote(term, candidateID, c.selfID)
}

// ObserveAppendEntries applies a leader's replicated entries on this
// follower and reports this node's term back, per AppendEntriesResponse's
// own doc comment.
func (c *Coordinator) ObserveAppendEntries(term, leaderID, prevLogIndex, prevLogTerm, leaderCommit uint64, entries []wire.LogEntry) wire.AppendEntriesResponse {
	currentTerm := c.election.CurrentTerm()
	if term < currentTerm {
		return wire.AppendEntriesResponse{Term: currentTerm, Success: false}
	}
	if err := c.election.SetLeader(term, leaderID); err != nil {
		return wire.AppendEntriesResponse{Term: c.election.CurrentTerm(), Success: false}
	}
	c.election.SetLastHeartbeat(time.Now())
	c.setRole(Follower)

	for _, e := range entries {
		if err := c.ApplyLogEntry(e); err != nil {
			c.logger.Warn("apply log entry failed", "index", e.Index, "error", err)
			return wire.AppendEntriesResponse{Term: c.election.CurrentTerm(), Success: false}
		}
	}
	return wire.AppendEntriesResponse{Term: c.election.CurrentTerm(), Success: true}
}

// ObserveHello validates an incoming peer's Hello handshake and reports
// whether this node supports payload compression, so the dispatcher can
// echo that back to the connecting peer and both ends agree on whether
// subsequent SyncMessages batches carry compressed payloads.
func (c *Coordinator) ObserveHello(hashedSecret string) (supportsCompression bool, err error) {
	if !c.VerifySecret(hashedSecret) {
		return false, sysErrors.NewInvalidClusterSecret()
	}
	return c.compressor.Enabled(), nil
}

// ObserveSyncCreatedStream creates streamID locally, replicating a leader's
// stream creation (or, per this implementation's convention, establishing
// the stream context a following ObserveSyncMessages call applies to).
func (c *Coordinator) ObserveSyncCreatedStream(term, streamID uint64) error {
	return c.streamer.CreateStream(streamID)
}

// ObserveSyncMessages applies a leader's already-assigned message batch to
// streamID, decompressing each payload first when senderCompressed is true.
func (c *Coordinator) ObserveSyncMessages(streamID uint64, messages []wire.Message, senderCompressed bool) error {
	if senderCompressed {
		decoded := make([]wire.Message, len(messages))
		for i, m := range messages {
			payload, err := c.compressor.Decompress(m.Payload)
			if err != nil {
				return err
			}
			decoded[i] = wire.Message{Offset: m.Offset, ID: m.ID, Payload: payload}
		}
		messages = decoded
	}
	return c.streamer.ReplicateMessages(streamID, messages)
}

// ObserveGetStreams answers a peer's GetStreams request with this node's
// stream catalog summary.
func (c *Coordinator) ObserveGetStreams() []wire.StreamInfo {
	return c.streamer.GetStreams()
}

// ObserveGetNodeState answers a peer's GetNodeState request with this
// node's election/replication state.
func (c *Coordinator) ObserveGetNodeState() wire.NodeState {
	c.stateMu.Lock()
	commitIndex, lastApplied := c.commitIndex, c.lastApplied
	c.stateMu.Unlock()
	return wire.NodeState{
		ID:          c.selfID,
		Address:     c.selfAddress,
		Term:        c.election.CurrentTerm(),
		CommitIndex: commitIndex,
		LastApplied: lastApplied,
	}
}

// ObserveSendVote records an explicit vote notification pushed by voterNodeID
// for candidateID, alongside whatever this node already recorded from a
// RequestVote response. A vote already recorded for this term is not an
// error here — SendVote is a best-effort reinforcement of the same tally.
func (c *Coordinator) ObserveSendVote(term, candidateID, voterNodeID uint64) error {
	err := c.election.Vote(term, candidateID, voterNodeID)
	if err != nil && sysErrors.GetCode(err) == sysErrors.AlreadyVoted {
		return nil
	}
	return err
}

// LoadState answers a peer's LoadState request with every generic
// cluster-state entry at or after startIndex, alongside this node's current
// term and last-applied index.
func (c *Coordinator) LoadState(startIndex uint64) wire.AppendedState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	var entries []wire.LogEntry
	for _, e := range c.entries {
		if e.Index >= startIndex {
			entries = append(entries, e)
		}
	}
	return wire.AppendedState{
		Term:        c.election.CurrentTerm(),
		LastApplied: c.lastApplied,
		Entries:     entries,
	}
}

func roleFor(selfID, leaderID uint64) Role {
	if selfID == leaderID {
		return Leader
	}
	return Follower
}
