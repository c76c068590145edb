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

import (
	"bytes"
	"reflect"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, uint32(CodeAppendMessages), []byte("hello")); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	code, payload, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if code != uint32(CodeAppendMessages) {
		t.Errorf("code = %d, want %d", code, CodeAppendMessages)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want %q", payload, "hello")
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, StatusOK, nil); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	status, payload, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if status != StatusOK {
		t.Errorf("status = %d, want %d", status, StatusOK)
	}
	if len(payload) != 0 {
		t.Errorf("payload = %v, want empty", payload)
	}
}

func TestFrameShortHeaderIsInvalidRequest(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})
	if _, _, err := ReadRequest(buf); err == nil {
		t.Fatal("expected error on short header")
	}
}

func TestHelloRequestRoundTrip(t *testing.T) {
	want := HelloRequest{Secret: "s3cret", Name: "node-a", NodeID: 1, Term: 4, LeaderID: 2}
	got, err := DecodeHelloRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHelloRequestNoLeader(t *testing.T) {
	want := HelloRequest{Secret: "s3cret", Name: "node-a", NodeID: 1, Term: 0, LeaderID: 0}
	got, err := DecodeHelloRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAppendMessagesRoundTrip(t *testing.T) {
	want := AppendMessagesRequest{
		StreamID: 42,
		Messages: []AppendableMessage{
			{ID: 0, Payload: []byte("one")},
			{ID: 7, Payload: []byte("two")},
			{ID: 0, Payload: []byte{}},
		},
	}
	got, err := DecodeAppendMessagesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StreamID != want.StreamID {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(got.Messages) != len(want.Messages) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(want.Messages))
	}
	for i := range want.Messages {
		if got.Messages[i].ID != want.Messages[i].ID ||
			!bytes.Equal(got.Messages[i].Payload, want.Messages[i].Payload) {
			t.Errorf("message[%d] = %+v, want %+v", i, got.Messages[i], want.Messages[i])
		}
	}

	respWant := AppendMessagesResponse{StreamID: 42, FirstOffset: 0, LastOffset: 2}
	respGot, err := DecodeAppendMessagesResponse(respWant.Encode())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if respGot != respWant {
		t.Errorf("got %+v, want %+v", respGot, respWant)
	}
}

func TestAppendMessagesEmpty(t *testing.T) {
	want := AppendMessagesRequest{StreamID: 1}
	got, err := DecodeAppendMessagesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StreamID != want.StreamID || len(got.Messages) != 0 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCreateStreamRoundTrip(t *testing.T) {
	want := CreateStreamRequest{ID: 7, Name: "orders"}
	got, err := DecodeCreateStreamRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCreateStreamUsesFourByteNamePrefix(t *testing.T) {
	req := CreateStreamRequest{ID: 1, Name: "orders"}
	encoded := req.Encode()

	r := newReader(encoded)
	if _, err := r.U64(); err != nil {
		t.Fatalf("U64: %v", err)
	}
	length, err := r.U32()
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if int(length) != len("orders") {
		t.Errorf("length prefix = %d, want %d", length, len("orders"))
	}
}

func TestDeleteStreamRoundTrip(t *testing.T) {
	want := DeleteStreamRequest{ID: 99}
	got, err := DecodeDeleteStreamRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPollMessagesRoundTrip(t *testing.T) {
	want := PollMessagesRequest{StreamID: 3, Offset: 10, Count: 50}
	got, err := DecodePollMessagesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	respWant := PollMessagesResponse{Messages: []Message{
		{Offset: 1, ID: 100, Payload: []byte("a")},
		{Offset: 2, ID: 101, Payload: []byte("bb")},
	}}
	respGot, err := DecodePollMessagesResponse(respWant.Encode())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(respGot.Messages) != len(respWant.Messages) {
		t.Fatalf("message count = %d, want %d", len(respGot.Messages), len(respWant.Messages))
	}
	for i := range respWant.Messages {
		if respGot.Messages[i].Offset != respWant.Messages[i].Offset ||
			respGot.Messages[i].ID != respWant.Messages[i].ID ||
			!bytes.Equal(respGot.Messages[i].Payload, respWant.Messages[i].Payload) {
			t.Errorf("message[%d] = %+v, want %+v", i, respGot.Messages[i], respWant.Messages[i])
		}
	}
}

func TestGetStreamsRoundTrip(t *testing.T) {
	want := GetStreamsResponse{Streams: []StreamInfo{{ID: 1, Offset: 10}, {ID: 2, Offset: 0}}}
	got, err := DecodeGetStreamsResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetNodeStateRoundTrip(t *testing.T) {
	want := GetNodeStateResponse{State: NodeState{
		ID: 5, Address: "10.0.0.1:9000", Term: 7, CommitIndex: 100, LastApplied: 99,
	}}
	got, err := DecodeGetNodeStateResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetMetadataRoundTrip(t *testing.T) {
	want := GetMetadataResponse{Metadata: ClusterMetadata{
		Nodes: []NodeInfo{
			{ID: 1, Name: "node-a", Address: "10.0.0.1:9000"},
			{ID: 2, Name: "node-b", Address: "10.0.0.2:9000"},
		},
		Streams: []StreamCatalogEntry{
			{ID: 1, LeaderID: 1, Name: "orders"},
		},
	}}
	got, err := DecodeGetMetadataResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadStateRoundTrip(t *testing.T) {
	want := LoadStateRequest{StartIndex: 20}
	got, err := DecodeLoadStateRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	respWant := LoadStateResponse{State: AppendedState{
		Term: 3, LastApplied: 20,
		Entries: []LogEntry{
			{Index: 21, Data: []byte("x")},
			{Index: 22, Data: []byte("")},
		},
	}}
	respGot, err := DecodeLoadStateResponse(respWant.Encode())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !reflect.DeepEqual(respGot, respWant) {
		t.Errorf("got %+v, want %+v", respGot, respWant)
	}
}

func TestLoadStateResponseNoEntries(t *testing.T) {
	want := LoadStateResponse{State: AppendedState{Term: 1, LastApplied: 0}}
	got, err := DecodeLoadStateResponse(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State.Term != want.State.Term || len(got.State.Entries) != 0 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	want := HeartbeatRequest{Term: 4, LeaderID: 1}
	got, err := DecodeHeartbeatRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHeartbeatNoLeader(t *testing.T) {
	want := HeartbeatRequest{Term: 4, LeaderID: 0}
	got, err := DecodeHeartbeatRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRequestVoteRoundTrip(t *testing.T) {
	want := RequestVoteRequest{Term: 6}
	got, err := DecodeRequestVoteRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSendVoteRoundTrip(t *testing.T) {
	want := SendVoteRequest{Term: 6, CandidateID: 3}
	got, err := DecodeSendVoteRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUpdateLeaderRoundTrip(t *testing.T) {
	want := UpdateLeaderRequest{Term: 8, LeaderID: 2}
	got, err := DecodeUpdateLeaderRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAppendEntriesRoundTrip(t *testing.T) {
	want := AppendEntriesRequest{
		Term: 9, LeaderID: 1, PrevLogIndex: 10, PrevLogTerm: 8, LeaderCommit: 9,
		Entries: []LogEntry{
			{Index: 11, Data: []byte("abc")},
			{Index: 12, Data: []byte("")},
		},
	}
	got, err := DecodeAppendEntriesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	respWant := AppendEntriesResponse{Term: 9, Success: true}
	respGot, err := DecodeAppendEntriesResponse(respWant.Encode())
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if respGot != respWant {
		t.Errorf("got %+v, want %+v", respGot, respWant)
	}
}

func TestAppendEntriesNoEntries(t *testing.T) {
	want := AppendEntriesRequest{Term: 1, LeaderID: 1, LeaderCommit: 0}
	got, err := DecodeAppendEntriesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Term != want.Term || len(got.Entries) != 0 {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSyncMessagesRoundTrip(t *testing.T) {
	want := SyncMessagesRequest{Messages: []Message{
		{Offset: 1, ID: 1, Payload: []byte("p")},
		{Offset: 2, ID: 2, Payload: []byte("q")},
	}}
	got, err := DecodeSyncMessagesRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSyncCreatedStreamRoundTrip(t *testing.T) {
	want := SyncCreatedStreamRequest{Term: 5, StreamID: 5}
	got, err := DecodeSyncCreatedStreamRequest(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeTruncatedPayloadFails(t *testing.T) {
	full := HeartbeatRequest{Term: 1, LeaderID: 1}.Encode()
	if _, err := DecodeHeartbeatRequest(full[:4]); err == nil {
		t.Fatal("expected error decoding truncated payload")
	}
}

func TestIsKnownCode(t *testing.T) {
	if !IsKnownCode(uint32(CodeHello)) {
		t.Error("expected Hello to be known")
	}
	if !IsKnownCode(uint32(CodeSyncCreatedStream)) {
		t.Error("expected SyncCreatedStream to be known")
	}
	if IsKnownCode(999999) {
		t.Error("expected unknown code to be rejected")
	}
}

func TestRequiredAcknowledgementsString(t *testing.T) {
	cases := map[RequiredAcknowledgements]string{
		AckNone:     "none",
		AckLeader:   "leader",
		AckMajority: "majority",
	}
	for ack, want := range cases {
		if got := ack.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", ack, got, want)
		}
	}
}
