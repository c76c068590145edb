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
	"testing"
	"time"

	"streamnode/internal/wire"
)

// fakePeerServer accepts one connection at a time and answers every request
// with StatusOK and an empty payload, except codes registered in handlers.
type fakePeerServer struct {
	ln        net.Listener
	handlers  map[wire.Code]func(payload []byte) (uint32, []byte)
	dropCodes map[wire.Code]bool
}

func newFakePeerServer(t *testing.T) *fakePeerServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakePeerServer{
		ln:        ln,
		handlers:  make(map[wire.Code]func([]byte) (uint32, []byte)),
		dropCodes: make(map[wire.Code]bool),
	}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakePeerServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *fakePeerServer) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		code, payload, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}
		if s.dropCodes[wire.Code(code)] {
			return
		}
		status := wire.StatusOK
		var resp []byte
		if h, ok := s.handlers[wire.Code(code)]; ok {
			status, resp = h(payload)
		}
		if err := wire.WriteResponse(conn, status, resp); err != nil {
			return
		}
	}
}

func newTestLink(t *testing.T, addr string) *PeerLink {
	t.Helper()
	return NewPeerLink(2, "peer-2", addr, 1, "node-1", "s3cret", 3, 5)
}

func TestPeerLinkConnectSendsHelloAndReportsConnected(t *testing.T) {
	srv := newFakePeerServer(t)
	var gotHello wire.HelloRequest
	srv.handlers[wire.CodeHello] = func(payload []byte) (uint32, []byte) {
		req, err := wire.DecodeHelloRequest(payload)
		if err != nil {
			return 999, nil
		}
		gotHello = req
		return wire.StatusOK, nil
	}

	link := newTestLink(t, srv.ln.Addr().String())
	if link.IsConnected() {
		t.Fatal("new link should start disconnected")
	}
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer link.Disconnect()

	if !link.IsConnected() {
		t.Fatal("expected connected after successful Connect")
	}
	if gotHello.Name != "node-1" || gotHello.NodeID != 1 {
		t.Errorf("hello = %+v, want name=node-1 node_id=1", gotHello)
	}
	if gotHello.Secret == "s3cret" {
		t.Error("hello should carry a hashed secret, not the plaintext")
	}
}

func TestPeerLinkConnectRetriesThenFails(t *testing.T) {
	// No listener at all: every dial attempt fails immediately, and the
	// bounded retry budget (2 retries, 5ms apart) should return an error
	// promptly rather than hang.
	link := NewPeerLink(2, "peer-2", "127.0.0.1:1", 1, "node-1", "s3cret", 2, 5)
	start := time.Now()
	err := link.Connect(context.Background())
	if err == nil {
		t.Fatal("expected error connecting to a port nothing listens on")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect took too long: %v", elapsed)
	}
	if link.IsConnected() {
		t.Error("link should not report connected after exhausted retries")
	}
}

func TestPeerLinkSendRequestWithoutConnectionIsClientDisconnected(t *testing.T) {
	link := newTestLink(t, "127.0.0.1:0")
	if err := link.Heartbeat(1, 1); err == nil {
		t.Fatal("expected error sending heartbeat on a disconnected link")
	}
}

func TestPeerLinkHeartbeatFailureDisconnects(t *testing.T) {
	srv := newFakePeerServer(t)
	srv.handlers[wire.CodeHello] = func([]byte) (uint32, []byte) { return wire.StatusOK, nil }
	srv.dropCodes[wire.CodeHeartbeat] = true

	link := newTestLink(t, srv.ln.Addr().String())
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := link.Heartbeat(1, 1); err == nil {
		t.Fatal("expected heartbeat to fail once the server drops the connection")
	}
	if link.IsConnected() {
		t.Error("link should flip to disconnected after a failed heartbeat send")
	}
}

func TestPeerLinkAppendEntriesRoundTrip(t *testing.T) {
	srv := newFakePeerServer(t)
	srv.handlers[wire.CodeHello] = func([]byte) (uint32, []byte) { return wire.StatusOK, nil }
	srv.handlers[wire.CodeAppendEntries] = func(payload []byte) (uint32, []byte) {
		req, err := wire.DecodeAppendEntriesRequest(payload)
		if err != nil {
			return 999, nil
		}
		return wire.StatusOK, wire.AppendEntriesResponse{Term: req.Term, Success: true}.Encode()
	}

	link := newTestLink(t, srv.ln.Addr().String())
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer link.Disconnect()

	resp, err := link.AppendEntries(5, 1, 0, 0, 1, []wire.LogEntry{{Index: 1, Data: []byte("x")}})
	if err != nil {
		t.Fatalf("AppendEntries: %v", err)
	}
	if !resp.Success || resp.Term != 5 {
		t.Errorf("resp = %+v, want success term=5", resp)
	}
}

func TestPeerLinkSyncMessagesSendsCreatedStreamFirst(t *testing.T) {
	srv := newFakePeerServer(t)
	srv.handlers[wire.CodeHello] = func([]byte) (uint32, []byte) { return wire.StatusOK, nil }

	var order []wire.Code
	var sawStreamID uint64
	srv.handlers[wire.CodeSyncCreatedStream] = func(payload []byte) (uint32, []byte) {
		order = append(order, wire.CodeSyncCreatedStream)
		req, _ := wire.DecodeSyncCreatedStreamRequest(payload)
		sawStreamID = req.StreamID
		return wire.StatusOK, nil
	}
	srv.handlers[wire.CodeSyncMessages] = func(payload []byte) (uint32, []byte) {
		order = append(order, wire.CodeSyncMessages)
		return wire.StatusOK, nil
	}

	link := newTestLink(t, srv.ln.Addr().String())
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer link.Disconnect()

	err := link.SyncMessages(1, 42, []wire.Message{{Offset: 0, ID: 1, Payload: []byte("hi")}})
	if err != nil {
		t.Fatalf("SyncMessages: %v", err)
	}
	if len(order) != 2 || order[0] != wire.CodeSyncCreatedStream || order[1] != wire.CodeSyncMessages {
		t.Errorf("order = %v, want [SyncCreatedStream, SyncMessages]", order)
	}
	if sawStreamID != 42 {
		t.Errorf("stream id on SyncCreatedStream = %d, want 42", sawStreamID)
	}
}
