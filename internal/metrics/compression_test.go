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

package metrics

import (
	"bytes"
	"testing"

	"streamnode/internal/config"
)

func TestCompressionRoundTrip(t *testing.T) {
	testData := []byte("this is some test data that should be compressed and decompressed correctly. it needs to be long enough to actually see some compression if possible, but here we just care about correctness.")

	algorithms := []string{"gzip", "lz4", "snappy", "zstd"}
	for _, algo := range algorithms {
		t.Run(algo, func(t *testing.T) {
			compressor, err := NewCompressor(config.CompressionConfig{Algorithm: algo, MinSize: 0})
			if err != nil {
				t.Fatalf("NewCompressor: %v", err)
			}

			compressed, err := compressor.Compress(testData)
			if err != nil {
				t.Fatalf("Compress with %s: %v", algo, err)
			}
			if Algorithm(compressed[0]).String() != algo {
				t.Errorf("tag = %s, want %s", Algorithm(compressed[0]), algo)
			}

			decompressed, err := compressor.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress with %s: %v", algo, err)
			}
			if !bytes.Equal(testData, decompressed) {
				t.Errorf("decompressed data does not match original for %s", algo)
			}
		})
	}
}

func TestCompressionBelowMinSizePassesThrough(t *testing.T) {
	compressor, err := NewCompressor(config.CompressionConfig{Algorithm: "zstd", MinSize: 1024})
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	small := []byte("short")
	out, err := compressor.Compress(small)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if Algorithm(out[0]) != AlgorithmNone {
		t.Errorf("expected AlgorithmNone tag for below-MinSize payload, got %s", Algorithm(out[0]))
	}
	back, err := compressor.Decompress(out)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(small, back) {
		t.Errorf("round trip mismatch: got %q want %q", back, small)
	}
}

func TestCompressionNoneAlgorithmNeverCompresses(t *testing.T) {
	compressor, err := NewCompressor(config.CompressionConfig{Algorithm: "none", MinSize: 0})
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	if compressor.Enabled() {
		t.Error("Enabled() should be false for algorithm=none")
	}
	data := bytes.Repeat([]byte("x"), 4096)
	out, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if Algorithm(out[0]) != AlgorithmNone {
		t.Error("expected AlgorithmNone tag")
	}
}

func TestBatchCompression(t *testing.T) {
	batch, err := NewBatchCompressor(config.CompressionConfig{Algorithm: "zstd", MinSize: 0})
	if err != nil {
		t.Fatalf("NewBatchCompressor: %v", err)
	}

	entries := [][]byte{
		[]byte("entry 1"),
		[]byte("entry 2"),
		[]byte("entry 3 - a bit longer than others"),
	}
	for _, e := range entries {
		batch.Add(e)
	}

	compressed, err := batch.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	decoded, err := batch.DecompressBatch(compressed)
	if err != nil {
		t.Fatalf("DecompressBatch: %v", err)
	}
	if len(decoded) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(decoded))
	}
	for i, e := range entries {
		if !bytes.Equal(e, decoded[i]) {
			t.Errorf("entry %d = %q, want %q", i, decoded[i], e)
		}
	}
}

func TestParseAlgorithmRejectsUnknown(t *testing.T) {
	if _, err := ParseAlgorithm("brotli"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
