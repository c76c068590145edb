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
Package metrics carries streamnode's optional wire-payload compression and
LAN peer-advertisement helpers — domain-stack concerns the coordination
kernel itself never needs to know about.

Compression is negotiated per peer link: a connecting node advertises
SupportsCompression on its Hello frame, and the accepting side only
compresses SyncMessages/AppendEntries payloads back to peers that asked for
it. Every compressed payload carries a leading one-byte algorithm tag, so
Decompress never needs to consult the local configuration — only what the
sender actually wrote.
*/
package metrics

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"streamnode/internal/config"
)

// Algorithm identifies a payload compression codec. The zero value,
// AlgorithmNone, means "send as-is" and is always a legal tag.
type Algorithm byte

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmGzip:
		return "gzip"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "none", "":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

var (
	ErrInvalidHeader    = errors.New("metrics: compressed payload is missing its algorithm tag")
	ErrUnsupportedAlgo  = errors.New("metrics: unsupported compression algorithm tag")
	ErrDecompressFailed = errors.New("metrics: decompression failed")
)

// Compressor applies one configured Algorithm to payloads above a minimum
// size, tagging every output with a leading algorithm byte.
type Compressor struct {
	algorithm Algorithm
	minSize   int
}

// NewCompressor builds a Compressor from the cluster's compression config.
func NewCompressor(cfg config.CompressionConfig) (*Compressor, error) {
	algo, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Compressor{algorithm: algo, minSize: cfg.MinSize}, nil
}

func (c *Compressor) Algorithm() Algorithm { return c.algorithm }
func (c *Compressor) MinSize() int         { return c.minSize }

// Enabled reports whether this Compressor would ever actually compress
// anything, i.e. whether it's worth negotiating with a peer at all.
func (c *Compressor) Enabled() bool { return c.algorithm != AlgorithmNone }

// Compress tags data with its one-byte algorithm header. Data shorter than
// MinSize, or a Compressor configured for AlgorithmNone, is passed through
// under the AlgorithmNone tag rather than actually compressed — batching
// small messages rarely pays for the codec's own framing overhead.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if c.algorithm == AlgorithmNone || len(data) < c.minSize {
		return tagged(AlgorithmNone, data), nil
	}
	body, err := compressWith(c.algorithm, data)
	if err != nil {
		return nil, err
	}
	return tagged(c.algorithm, body), nil
}

// Decompress reads the leading tag written by Compress (possibly by a
// different node's Compressor, on a different codec) and decodes
// accordingly.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidHeader
	}
	tag, body := Algorithm(data[0]), data[1:]
	if tag == AlgorithmNone {
		return body, nil
	}
	return decompressWith(tag, body)
}

func tagged(algo Algorithm, body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = byte(algo)
	copy(out[1:], body)
	return out
}

func compressWith(algo Algorithm, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := newCompressWriter(algo, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s compress: %w", algo, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", algo, err)
	}
	return buf.Bytes(), nil
}

func decompressWith(algo Algorithm, data []byte) ([]byte, error) {
	r, closer, err := newDecompressReader(algo, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	return out, nil
}

func newCompressWriter(algo Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch algo {
	case AlgorithmGzip:
		return gzip.NewWriter(w), nil
	case AlgorithmLZ4:
		return lz4.NewWriter(w), nil
	case AlgorithmSnappy:
		return snappy.NewBufferedWriter(w), nil
	case AlgorithmZstd:
		return zstd.NewWriter(w)
	default:
		return nil, ErrUnsupportedAlgo
	}
}

func newDecompressReader(algo Algorithm, r io.Reader) (io.Reader, io.Closer, error) {
	switch algo {
	case AlgorithmGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return gr, gr, nil
	case AlgorithmLZ4:
		return lz4.NewReader(r), nil, nil
	case AlgorithmSnappy:
		return snappy.NewReader(r), nil, nil
	case AlgorithmZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		return zr, ioCloserFunc(zr.Close), nil
	default:
		return nil, nil, ErrUnsupportedAlgo
	}
}

// ioCloserFunc adapts a zstd.Decoder's Close (which takes no error return)
// to io.Closer.
type ioCloserFunc func()

func (f ioCloserFunc) Close() error { f(); return nil }

// BatchCompressor accumulates several opaque entries (e.g. message
// payloads) and compresses them as a single unit, amortizing codec framing
// overhead across the batch — grounded on SyncMessages replicating whole
// message batches to a peer in one request.
type BatchCompressor struct {
	compressor *Compressor
	entries    [][]byte
}

// NewBatchCompressor builds a BatchCompressor from the cluster's
// compression config.
func NewBatchCompressor(cfg config.CompressionConfig) (*BatchCompressor, error) {
	c, err := NewCompressor(cfg)
	if err != nil {
		return nil, err
	}
	return &BatchCompressor{compressor: c}, nil
}

// Add appends one entry to the pending batch.
func (b *BatchCompressor) Add(entry []byte) {
	b.entries = append(b.entries, entry)
}

// Flush frames the pending batch (count + length-prefixed entries) and
// compresses it as one unit, then clears the batch.
func (b *BatchCompressor) Flush() ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(b.entries)))
	for _, e := range b.entries {
		binary.Write(&buf, binary.BigEndian, uint32(len(e)))
		buf.Write(e)
	}
	b.entries = nil
	return b.compressor.Compress(buf.Bytes())
}

// DecompressBatch reverses Flush: it decompresses data (using data's own
// leading algorithm tag, not this BatchCompressor's configured algorithm)
// and splits the frame back into individual entries.
func (b *BatchCompressor) DecompressBatch(data []byte) ([][]byte, error) {
	raw, err := b.compressor.Decompress(data)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	entries := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		entry := make([]byte, n)
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
