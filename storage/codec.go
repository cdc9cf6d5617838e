// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package storage // import "go.opentelemetry.io/request-profiler/storage"

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"go.opentelemetry.io/request-profiler/profile"
)

// FileExtension is the suffix of files and objects written by Marshal.
const FileExtension = ".json.zst"

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Marshal encodes p in the wire format and compresses it with zstd.
func Marshal(p *profile.Profile) ([]byte, error) {
	data, err := profile.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %s: %w", p.ID, err)
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Unmarshal reverses Marshal.
func Unmarshal(data []byte) (*profile.Profile, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress profile: %w", err)
	}
	return profile.Decode(raw)
}
