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
Package wire implements streamnode's binary framing and command codec.

Framing:
========

Every peer-to-peer and client-to-node exchange is a strict request/reply pair
over one TCP connection; a single request is in flight at a time, there is no
interleaving.

	Request:  code:u32 LE | payload_length:u32 LE | payload
	Response: status:u32 LE | payload_length:u32 LE | payload

status == 0 means success; any other value is a SystemError code (see
internal/errors). A short read on the 8-byte header is reported as
InvalidRequest/InvalidResponse and the caller closes the connection.
*/
package wire

import (
	"encoding/binary"
	"io"

	sysErrors "streamnode/internal/errors"
)

// StatusOK is the response status value for a successful command.
const StatusOK uint32 = 0

// HeaderSize is the fixed size, in bytes, of both the request and response
// frame headers.
const HeaderSize = 8

// MaxPayloadSize bounds how large a single frame's payload may be, guarding
// against a corrupt or hostile length prefix causing an unbounded read.
const MaxPayloadSize = 64 * 1024 * 1024

// WriteRequest writes a request frame: code, then payload length, then
// payload bytes.
func WriteRequest(w io.Writer, code uint32, payload []byte) error {
	return writeFrame(w, code, payload)
}

// ReadRequest reads a request frame from r.
func ReadRequest(r io.Reader) (code uint32, payload []byte, err error) {
	code, payload, err = readFrame(r)
	if err != nil {
		return 0, nil, sysErrors.NewInvalidRequest(err.Error())
	}
	return code, payload, nil
}

// WriteResponse writes a response frame: status, then payload length, then
// payload bytes.
func WriteResponse(w io.Writer, status uint32, payload []byte) error {
	return writeFrame(w, status, payload)
}

// ReadResponse reads a response frame from r.
func ReadResponse(r io.Reader) (status uint32, payload []byte, err error) {
	status, payload, err = readFrame(r)
	if err != nil {
		return 0, nil, sysErrors.NewInvalidResponse(err.Error())
	}
	return status, payload, nil
}

func writeFrame(w io.Writer, first uint32, payload []byte) error {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], first)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	first := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxPayloadSize {
		return 0, nil, io.ErrShortBuffer
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return first, payload, nil
}
