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

	"github.com/goccy/go-json"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// JSONCodec writes the kind byte followed by a JSON document. It is larger
// than BinaryCodec but readable in packet captures.
type JSONCodec struct{}

func (JSONCodec) Kind() Kind {
	return KindJSON
}

func (JSONCodec) EncodeMessageMeta(typ types.MessageType, id int64) ([]byte, error) {
	if err := validateMessageMeta(typ); err != nil {
		return nil, common.Invalid("cannot encode message type %d", uint16(typ))
	}
	return encodeJSON(types.MessageMeta{Type: typ, ID: id})
}

func (JSONCodec) DecodeMessageMeta(data []byte) (types.MessageType, int64, error) {
	var meta types.MessageMeta
	if err := decodeJSON(data, &meta); err != nil {
		return 0, 0, err
	}
	if err := validateMessageMeta(meta.Type); err != nil {
		return 0, 0, err
	}
	return meta.Type, meta.ID, nil
}

func (JSONCodec) EncodeTensorMeta(dtype types.ElementType, shape []int64) ([]byte, error) {
	if err := validateTensorMeta(dtype, shape); err != nil {
		return nil, common.Invalid("cannot encode tensor metadata: %v", err)
	}
	return encodeJSON(tensorMetaOf(dtype, shape))
}

func (JSONCodec) DecodeTensorMeta(data []byte) (types.ElementType, []int64, error) {
	var meta types.TensorMeta
	if err := decodeJSON(data, &meta); err != nil {
		return 0, nil, err
	}
	return tensorMetaFrom(meta)
}

func encodeJSON(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, common.Invalid("failed to marshal metadata: %v", err)
	}
	return append([]byte{byte(KindJSON)}, body...), nil
}

func decodeJSON(data []byte, v any) error {
	if err := checkKind(data, KindJSON); err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(data[1:]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return common.MetadataDecodeError("malformed json metadata: %v", err)
	}
	if decoder.More() {
		return common.MetadataDecodeError("trailing data after json metadata")
	}
	return nil
}

func tensorMetaOf(dtype types.ElementType, shape []int64) types.TensorMeta {
	if shape == nil {
		shape = []int64{}
	}
	return types.TensorMeta{DType: dtype.String(), Shape: shape}
}

func tensorMetaFrom(meta types.TensorMeta) (types.ElementType, []int64, error) {
	dtype, err := types.ParseElementType(meta.DType)
	if err != nil {
		return 0, nil, common.WithCode(err, common.KMetadataDecodeError, "bad tensor metadata")
	}
	shape := meta.Shape
	if shape == nil {
		shape = []int64{}
	}
	if err := validateTensorMeta(dtype, shape); err != nil {
		return 0, nil, err
	}
	return dtype, shape, nil
}
