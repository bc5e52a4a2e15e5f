/** Copyright 2020-2023 Alibaba Group Holding Limited.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transport

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
)

// Frame layout used by Conn, integers big-endian:
//
//	0      3   4          8                  16         20
//	┌──────┬───┬──────────┬──────────────────┬──────────┐
//	│magic │ v │ metaLen  │    payloadLen    │ nTensors │
//	│ twp  │01 │  uint32  │      uint64      │  uint32  │
//	└──────┴───┴──────────┴──────────────────┴──────────┘
//	metadata (metaLen bytes)
//	nTensors x { length uint64 | metaLen uint32 | metadata }
//	payload (payloadLen bytes)
//	tensor data, in order, length bytes each
//
// Everything up to the payload is the descriptor: a receiver reads it,
// allocates, then reads the data straight into its buffers.
const (
	MagicByte1    byte = 0x74 // 't'
	MagicByte2    byte = 0x77 // 'w'
	MagicByte3    byte = 0x70 // 'p'
	FrameVersion  byte = 0x01
	HeaderSize         = 20
	tensorDescLen      = 12
)

func encodeDescriptor(w *message.WireMessage) []byte {
	size := HeaderSize + len(w.Metadata)
	for _, t := range w.Tensors {
		size += tensorDescLen + len(t.Metadata)
	}
	buf := make([]byte, size)
	copy(buf[0:3], []byte{MagicByte1, MagicByte2, MagicByte3})
	buf[3] = FrameVersion
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(w.Metadata)))
	binary.BigEndian.PutUint64(buf[8:16], uint64(w.Length))
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(w.Tensors)))
	offset := HeaderSize
	offset += copy(buf[offset:], w.Metadata)
	for _, t := range w.Tensors {
		binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(t.Length))
		binary.BigEndian.PutUint32(buf[offset+8:offset+12], uint32(len(t.Metadata)))
		offset += tensorDescLen
		offset += copy(buf[offset:], t.Metadata)
	}
	return buf
}

func (o *options) checkEncodable(w *message.WireMessage) error {
	if len(w.Metadata) > o.maxMetadataSize {
		return common.Invalid("message metadata of %d bytes exceeds limit %d", len(w.Metadata), o.maxMetadataSize)
	}
	if len(w.Tensors) > o.maxTensors {
		return common.Invalid("%d tensors exceed limit %d", len(w.Tensors), o.maxTensors)
	}
	if len(w.Payload) != w.Length {
		return common.Invalid("payload has %d bytes, length says %d", len(w.Payload), w.Length)
	}
	for i, t := range w.Tensors {
		if len(t.Metadata) > o.maxMetadataSize {
			return common.Invalid("tensor %d metadata of %d bytes exceeds limit %d", i, len(t.Metadata), o.maxMetadataSize)
		}
		if len(t.Data) != t.Length {
			return common.Invalid("tensor %d has %d bytes, length says %d", i, len(t.Data), t.Length)
		}
	}
	return nil
}

func (o *options) readLength(r io.Reader, buf []byte) (int, error) {
	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint64(buf[:8])
	if n > math.MaxInt {
		return 0, common.Invalid("length %d overflows", n)
	}
	return int(n), nil
}

func (o *options) readMetadata(r io.Reader, n uint32) ([]byte, error) {
	if int64(n) > int64(o.maxMetadataSize) {
		return nil, common.Invalid("metadata of %d bytes exceeds limit %d", n, o.maxMetadataSize)
	}
	meta := make([]byte, n)
	if _, err := io.ReadFull(r, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// decodeDescriptor reads one descriptor. Errors wrapping a Status are
// protocol violations, anything else comes from the reader.
func (o *options) decodeDescriptor(r io.Reader) (*message.WireMessage, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != MagicByte1 || header[1] != MagicByte2 || header[2] != MagicByte3 {
		return nil, common.Invalid("invalid magic number: %x", header[0:3])
	}
	if header[3] != FrameVersion {
		return nil, common.Invalid("unsupported version: %d", header[3])
	}
	payloadLen := binary.BigEndian.Uint64(header[8:16])
	if payloadLen > math.MaxInt {
		return nil, common.Invalid("payload length %d overflows", payloadLen)
	}
	nTensors := binary.BigEndian.Uint32(header[16:20])
	if int64(nTensors) > int64(o.maxTensors) {
		return nil, common.Invalid("%d tensors exceed limit %d", nTensors, o.maxTensors)
	}
	meta, err := o.readMetadata(r, binary.BigEndian.Uint32(header[4:8]))
	if err != nil {
		return nil, err
	}
	desc := &message.WireMessage{
		Length:   int(payloadLen),
		Metadata: meta,
		Tensors:  make([]message.WireTensor, nTensors),
	}
	buf := make([]byte, tensorDescLen)
	total := desc.Length
	for i := range desc.Tensors {
		length, err := o.readLength(r, buf)
		if err != nil {
			return nil, err
		}
		if length > math.MaxInt-total {
			return nil, common.Invalid("frame data size overflows at tensor %d", i)
		}
		total += length
		if _, err := io.ReadFull(r, buf[8:12]); err != nil {
			return nil, err
		}
		meta, err := o.readMetadata(r, binary.BigEndian.Uint32(buf[8:12]))
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %d", i)
		}
		desc.Tensors[i] = message.WireTensor{Length: length, Metadata: meta}
	}
	return desc, nil
}
