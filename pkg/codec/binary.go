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

package codec

import (
	"encoding/binary"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// BinaryCodec is the default metadata encoding. All integers are big-endian.
//
// Message metadata, 12 bytes:
//
//	0      1        2        4                12
//	┌──────┬────────┬────────┬────────────────┐
//	│ kind │version │  type  │       id       │
//	│  00  │   01   │ uint16 │     int64      │
//	└──────┴────────┴────────┴────────────────┘
//
// Tensor metadata, 4 + 8*ndim bytes:
//
//	0      1        2       3      4
//	┌──────┬────────┬───────┬──────┬─────────────────────┐
//	│ kind │version │ dtype │ ndim │ ndim x int64 dims   │
//	└──────┴────────┴───────┴──────┴─────────────────────┘
type BinaryCodec struct{}

const (
	BinaryVersion byte = 0x01

	messageMetaSize    = 12
	tensorMetaHeadSize = 4
	maxDims            = 255
)

func (BinaryCodec) Kind() Kind {
	return KindBinary
}

func (BinaryCodec) EncodeMessageMeta(typ types.MessageType, id int64) ([]byte, error) {
	if err := validateMessageMeta(typ); err != nil {
		return nil, common.Invalid("cannot encode message type %d", uint16(typ))
	}
	buf := make([]byte, messageMetaSize)
	buf[0] = byte(KindBinary)
	buf[1] = BinaryVersion
	binary.BigEndian.PutUint16(buf[2:4], uint16(typ))
	binary.BigEndian.PutUint64(buf[4:12], uint64(id))
	return buf, nil
}

func (BinaryCodec) DecodeMessageMeta(data []byte) (types.MessageType, int64, error) {
	if err := checkKind(data, KindBinary); err != nil {
		return 0, 0, err
	}
	if len(data) != messageMetaSize {
		return 0, 0, common.MetadataDecodeError("message metadata has %d bytes, want %d", len(data), messageMetaSize)
	}
	if data[1] != BinaryVersion {
		return 0, 0, common.MetadataDecodeError("unsupported metadata version: %d", data[1])
	}
	typ := types.MessageType(binary.BigEndian.Uint16(data[2:4]))
	if err := validateMessageMeta(typ); err != nil {
		return 0, 0, err
	}
	return typ, int64(binary.BigEndian.Uint64(data[4:12])), nil
}

func (BinaryCodec) EncodeTensorMeta(dtype types.ElementType, shape []int64) ([]byte, error) {
	if err := validateTensorMeta(dtype, shape); err != nil {
		return nil, common.Invalid("cannot encode tensor metadata: %v", err)
	}
	if len(shape) > maxDims {
		return nil, common.Invalid("cannot encode %d dimensions, at most %d are supported", len(shape), maxDims)
	}
	buf := make([]byte, tensorMetaHeadSize+8*len(shape))
	buf[0] = byte(KindBinary)
	buf[1] = BinaryVersion
	buf[2] = byte(dtype)
	buf[3] = byte(len(shape))
	offset := tensorMetaHeadSize
	for _, d := range shape {
		binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(d))
		offset += 8
	}
	return buf, nil
}

func (BinaryCodec) DecodeTensorMeta(data []byte) (types.ElementType, []int64, error) {
	if err := checkKind(data, KindBinary); err != nil {
		return 0, nil, err
	}
	if len(data) < tensorMetaHeadSize {
		return 0, nil, common.MetadataDecodeError("tensor metadata has %d bytes, want at least %d",
			len(data), tensorMetaHeadSize)
	}
	if data[1] != BinaryVersion {
		return 0, nil, common.MetadataDecodeError("unsupported metadata version: %d", data[1])
	}
	dtype := types.ElementType(data[2])
	ndim := int(data[3])
	if want := tensorMetaHeadSize + 8*ndim; len(data) != want {
		return 0, nil, common.MetadataDecodeError("tensor metadata with %d dimensions has %d bytes, want %d",
			ndim, len(data), want)
	}
	shape := make([]int64, ndim)
	offset := tensorMetaHeadSize
	for i := range shape {
		shape[i] = int64(binary.BigEndian.Uint64(data[offset : offset+8]))
		offset += 8
	}
	if err := validateTensorMeta(dtype, shape); err != nil {
		return 0, nil, err
	}
	return dtype, shape, nil
}
