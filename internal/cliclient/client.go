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
Package cliclient is a minimal synchronous client for streamnode-cli: dial a
node's public address, send one command, read one response. It is grounded
on original_source/cli/src/client.rs's Client — connect once, send, read an
8-byte status+length header, then the payload — translated from monoio's
async read/write into a blocking net.Conn, since streamnode-cli issues one
command at a time rather than pipelining.
*/
package cliclient

import (
	"fmt"
	"net"
	"time"

	sysErrors "streamnode/internal/errors"
	"streamnode/internal/wire"
)

const dialTimeout = 5 * time.Second

// Client holds one long-lived connection to a streamnode node.
type Client struct {
	conn net.Conn
}

// Dial connects to address, the node's public client listener.
func Dial(address string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one request frame and waits for its response, returning an
// error built from the response's status code when it is not StatusOK.
func (c *Client) Send(code wire.Code, payload []byte) ([]byte, error) {
	if err := wire.WriteRequest(c.conn, uint32(code), payload); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	status, respPayload, err := wire.ReadResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if status != wire.StatusOK {
		return nil, &sysErrors.SystemError{
			Code:     sysErrors.Code(status),
			Category: sysErrors.CategoryTransport,
			Message:  fmt.Sprintf("cluster returned status %d", status),
		}
	}
	return respPayload, nil
}

// Ping sends a Ping command, erroring only on a transport or status failure.
func (c *Client) Ping() error {
	_, err := c.Send(wire.CodePing, nil)
	return err
}

// AppendMessages submits a batch of messages to streamID, returning the
// offsets the cluster assigned.
func (c *Client) AppendMessages(streamID uint64, messages []wire.AppendableMessage) (wire.AppendMessagesResponse, error) {
	payload, err := c.Send(wire.CodeAppendMessages, wire.AppendMessagesRequest{StreamID: streamID, Messages: messages}.Encode())
	if err != nil {
		return wire.AppendMessagesResponse{}, err
	}
	return wire.DecodeAppendMessagesResponse(payload)
}

// PollMessages reads up to count messages from streamID starting at offset.
func (c *Client) PollMessages(streamID, offset, count uint64) (wire.PollMessagesResponse, error) {
	payload, err := c.Send(wire.CodePollMessages, wire.PollMessagesRequest{StreamID: streamID, Offset: offset, Count: count}.Encode())
	if err != nil {
		return wire.PollMessagesResponse{}, err
	}
	return wire.DecodePollMessagesResponse(payload)
}

// CreateStream asks the cluster to create a new stream.
func (c *Client) CreateStream(streamID uint64, name string) error {
	_, err := c.Send(wire.CodeCreateStream, wire.CreateStreamRequest{ID: streamID, Name: name}.Encode())
	return err
}

// DeleteStream asks the cluster to delete a stream.
func (c *Client) DeleteStream(streamID uint64) error {
	_, err := c.Send(wire.CodeDeleteStream, wire.DeleteStreamRequest{ID: streamID}.Encode())
	return err
}

// GetStreams lists every stream the node knows about.
func (c *Client) GetStreams() (wire.GetStreamsResponse, error) {
	payload, err := c.Send(wire.CodeGetStreams, nil)
	if err != nil {
		return wire.GetStreamsResponse{}, err
	}
	return wire.DecodeGetStreamsResponse(payload)
}

// GetNodeState reports the connected node's own election/replication state.
func (c *Client) GetNodeState() (wire.GetNodeStateResponse, error) {
	payload, err := c.Send(wire.CodeGetNodeState, nil)
	if err != nil {
		return wire.GetNodeStateResponse{}, err
	}
	return wire.DecodeGetNodeStateResponse(payload)
}

// GetMetadata reports the cluster's node and stream catalog.
func (c *Client) GetMetadata() (wire.GetMetadataResponse, error) {
	payload, err := c.Send(wire.CodeGetMetadata, nil)
	if err != nil {
		return wire.GetMetadataResponse{}, err
	}
	return wire.DecodeGetMetadataResponse(payload)
}
