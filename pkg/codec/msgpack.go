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
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// MsgPackCodec writes the kind byte followed by a msgpack map keyed by the
// same names as the json codec.
type MsgPackCodec struct{}

func (MsgPackCodec) Kind() Kind {
	return KindMsgPack
}

func (MsgPackCodec) EncodeMessageMeta(typ types.MessageType, id int64) ([]byte, error) {
	if err := validateMessageMeta(typ); err != nil {
		return nil, common.Invalid("cannot encode message type %d", uint16(typ))
	}
	return encodeMsgPack(types.MessageMeta{Type: typ, ID: id})
}

func (MsgPackCodec) DecodeMessageMeta(data []byte) (types.MessageType, int64, error) {
	var meta types.MessageMeta
	if err := decodeMsgPack(data, &meta); err != nil {
		return 0, 0, err
	}
	if err := validateMessageMeta(meta.Type); err != nil {
		return 0, 0, err
	}
	return meta.Type, meta.ID, nil
}

func (MsgPackCodec) EncodeTensorMeta(dtype types.ElementType, shape []int64) ([]byte, error) {
	if err := validateTensorMeta(dtype, shape); err != nil {
		return nil, common.Invalid("cannot encode tensor metadata: %v", err)
	}
	return encodeMsgPack(tensorMetaOf(dtype, shape))
}

func (MsgPackCodec) DecodeTensorMeta(data []byte) (types.ElementType, []int64, error) {
	var meta types.TensorMeta
	if err := decodeMsgPack(data, &meta); err != nil {
		return 0, nil, err
	}
	return tensorMetaFrom(meta)
}

func encodeMsgPack(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(KindMsgPack))
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, common.Invalid("failed to marshal metadata: %v", err)
	}
	return buf.Bytes(), nil
}

func decodeMsgPack(data []byte, v any) error {
	if err := checkKind(data, KindMsgPack); err != nil {
		return err
	}
	reader := bytes.NewReader(data[1:])
	dec := msgpack.NewDecoder(reader)
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		return common.MetadataDecodeError("malformed msgpack metadata: %v", err)
	}
	if reader.Len() != 0 {
		return common.MetadataDecodeError("trailing %d bytes after msgpack metadata", reader.Len())
	}
	return nil
}
