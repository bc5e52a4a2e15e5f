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

// Package codec encodes the small metadata blobs carried by a WireMessage:
// the message type and id of a message, the element type and shape of each
// tensor.
//
// Every blob starts with a single Kind byte naming the codec that produced
// it, so the receiving side decodes with DecodeMessageMeta and
// DecodeTensorMeta regardless of what the sender was configured with.
package codec

import (
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

type Kind byte

const (
	KindBinary  Kind = 0
	KindJSON    Kind = 1
	KindMsgPack Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindJSON:
		return "json"
	case KindMsgPack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// Codec is a pure, deterministic metadata encoding. Decoding what Encode
// produced yields the encoded values exactly.
type Codec interface {
	Kind() Kind
	EncodeMessageMeta(typ types.MessageType, id int64) ([]byte, error)
	DecodeMessageMeta(data []byte) (types.MessageType, int64, error)
	EncodeTensorMeta(dtype types.ElementType, shape []int64) ([]byte, error)
	DecodeTensorMeta(data []byte) (types.ElementType, []int64, error)
}

var (
	Binary  Codec = BinaryCodec{}
	JSON    Codec = JSONCodec{}
	MsgPack Codec = MsgPackCodec{}

	Default = Binary
)

func GetCodec(kind Kind) (Codec, error) {
	switch kind {
	case KindBinary:
		return Binary, nil
	case KindJSON:
		return JSON, nil
	case KindMsgPack:
		return MsgPack, nil
	default:
		return nil, common.MetadataDecodeError("unknown metadata codec %d", byte(kind))
	}
}

func codecOf(data []byte) (Codec, error) {
	if len(data) == 0 {
		return nil, common.MetadataDecodeError("empty metadata")
	}
	return GetCodec(Kind(data[0]))
}

// DecodeMessageMeta decodes message metadata produced by any codec.
func DecodeMessageMeta(data []byte) (types.MessageType, int64, error) {
	c, err := codecOf(data)
	if err != nil {
		return 0, 0, err
	}
	return c.DecodeMessageMeta(data)
}

// DecodeTensorMeta decodes tensor metadata produced by any codec.
func DecodeTensorMeta(data []byte) (types.ElementType, []int64, error) {
	c, err := codecOf(data)
	if err != nil {
		return 0, nil, err
	}
	return c.DecodeTensorMeta(data)
}

func checkKind(data []byte, kind Kind) error {
	if len(data) == 0 {
		return common.MetadataDecodeError("empty metadata")
	}
	if Kind(data[0]) != kind {
		return common.MetadataDecodeError("metadata encoded as %s, not %s", Kind(data[0]), kind)
	}
	return nil
}

func validateMessageMeta(typ types.MessageType) error {
	if !typ.Valid() {
		return common.MetadataDecodeError("unknown message type %d", uint16(typ))
	}
	return nil
}

func validateTensorMeta(dtype types.ElementType, shape []int64) error {
	if !dtype.Valid() {
		return common.MetadataDecodeError("unknown element type %d", uint8(dtype))
	}
	for i, d := range shape {
		if d < 0 {
			return common.MetadataDecodeError("negative dimension %d at index %d", d, i)
		}
	}
	return nil
}
