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
	"encoding/binary"

	sysErrors "streamnode/internal/errors"
)

// writer accumulates a command payload in the little-endian layouts
// documented on each command type below.
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer { return &writer{} }

func (w *writer) Bytes() []byte { return w.buf.Bytes() }

func (w *writer) PutU8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// PutString1 writes a 1-byte length-prefixed string, the convention used
// for node/stream names and addresses throughout the codec.
func (w *writer) PutString1(s string) {
	w.buf.WriteByte(uint8(len(s)))
	w.buf.WriteString(s)
}

// PutString4 writes a 4-byte length-prefixed string. Only CreateStream uses
// this wider prefix for its name field, an inconsistency inherited directly
// from the original command encoder and preserved rather than normalized.
func (w *writer) PutString4(s string) {
	w.PutU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// PutBytes4 writes a 4-byte length-prefixed byte slice, the convention used
// for message payloads.
func (w *writer) PutBytes4(b []byte) {
	w.PutU32(uint32(len(b)))
	w.buf.Write(b)
}

// PutOptionU64 writes an Option<u64>, encoded as a u64 with 0 meaning absent.
func (w *writer) PutOptionU64(present bool, v uint64) {
	if !present {
		w.PutU64(optionU64Absent)
		return
	}
	w.PutU64(v)
}

// reader walks a decoded command payload, reporting a *errors.SystemError
// on any short read.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader { return &reader{data: data} }

func (r *reader) need(n int) error {
	if len(r.data)-r.pos < n {
		return sysErrors.NewInvalidCommand("payload too short")
	}
	return nil
}

func (r *reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) Bool() (bool, error) {
	v, err := r.U8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) String1() (string, error) {
	n, err := r.U8()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) String4() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) Bytes4() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

func (r *reader) OptionU64() (present bool, v uint64, err error) {
	v, err = r.U64()
	if err != nil {
		return false, 0, err
	}
	return v != optionU64Absent, v, nil
}

// Done reports whether every byte of the payload has been consumed; callers
// use it to reject trailing garbage after a well-formed decode.
func (r *reader) Done() bool { return r.pos == len(r.data) }
