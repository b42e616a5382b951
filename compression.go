// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Compression specifies the batch compression codec.
type Compression string

const (
	// CompressionSnappy uses Snappy compression.
	CompressionSnappy Compression = "snappy"

	// CompressionGzip uses Gzip compression (best ratio, most CPU).
	CompressionGzip Compression = "gzip"

	// CompressionLz4 uses LZ4 compression.
	CompressionLz4 Compression = "lz4"

	// CompressionZstd uses Zstandard compression.
	CompressionZstd Compression = "zstd"

	// CompressionNone disables compression.
	CompressionNone Compression = "none"
)

var compressionTypes map[Compression]kgo.CompressionCodec
var compressionList []string

func init() {
	list := []struct {
		name  Compression
		codec kgo.CompressionCodec
	}{
		{CompressionSnappy, kgo.SnappyCompression()},
		{CompressionGzip, kgo.GzipCompression()},
		{CompressionLz4, kgo.Lz4Compression()},
		{CompressionZstd, kgo.ZstdCompression()},
		{CompressionNone, kgo.NoCompression()},
	}

	compressionTypes = make(map[Compression]kgo.CompressionCodec)
	for _, c := range list {
		compressionTypes[c.name] = c.codec
		compressionList = append(compressionList, string(c.name))
	}
}

// Compressions returns every supported codec name, in preference order.
func Compressions() []Compression {
	out := make([]Compression, 0, len(compressionList))
	for _, c := range compressionList {
		out = append(out, Compression(c))
	}
	return out
}

// validateCompression validates the Compression enum value.
func validateCompression(codec Compression) error {
	if codec == "" {
		return nil
	}

	if _, ok := compressionTypes[codec]; ok {
		return nil
	}

	list := strings.Join(compressionList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("compression '%s' is invalid: must be %s or empty", codec, list))
}

// opt returns the franz-go option for the codec; empty means no compression.
func (c Compression) opt() kgo.Opt {
	codec, ok := compressionTypes[c]
	if !ok {
		codec = kgo.NoCompression()
	}
	return kgo.ProducerBatchCompression(codec)
}
