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

package wire

import (
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/tensor"
)

// Serializer turns Messages into WireMessages. It holds no mutable state
// and may be shared by concurrent senders.
type Serializer struct {
	options
}

func NewSerializer(opts ...Option) *Serializer {
	return &Serializer{options: newOptions(opts)}
}

// Serialize builds the wire form of msg. For each tensor, in order of
// precedence:
//
//  1. a tensor over foreign storage is copied into a buffer owned by the
//     entry, whether or not it spans the whole storage;
//  2. a partial or non-contiguous view of managed storage is cloned into a
//     tight managed storage;
//  3. any other tensor is referenced in place and its storage retained.
//
// The payload is referenced directly: the caller keeps msg.Payload alive
// and unmodified until the transport completes. On error nothing is left
// reserved.
func (s *Serializer) Serialize(msg *message.Message) (*Entry, error) {
	if msg == nil {
		return nil, common.Invalid("cannot serialize a nil message")
	}
	for i, t := range msg.Tensors {
		if t == nil {
			return nil, common.Invalid("tensor %d is nil", i)
		}
		if dev := t.Device(); !dev.HostAddressable() {
			return nil, common.UnsupportedDevice("tensor %d resides on %s, only host memory can be sent", i, dev)
		}
	}

	metadata, err := s.codec.EncodeMessageMeta(msg.Type, msg.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "message %d", msg.ID)
	}
	entry := &Entry{
		Message: &message.WireMessage{
			Length:   len(msg.Payload),
			Metadata: metadata,
			Payload:  msg.Payload,
			Tensors:  make([]message.WireTensor, 0, len(msg.Tensors)),
		},
		Reservations: make([]Reservation, 0, len(msg.Tensors)),
	}
	for i, t := range msg.Tensors {
		metadata, err := s.codec.EncodeTensorMeta(t.DType(), t.Shape())
		if err != nil {
			entry.Release()
			return nil, errors.Wrapf(err, "tensor %d", i)
		}
		reservation, err := s.reserve(t)
		if err != nil {
			entry.Release()
			return nil, errors.Wrapf(err, "tensor %d", i)
		}
		entry.Reservations = append(entry.Reservations, reservation)
		entry.Message.Tensors = append(entry.Message.Tensors, message.WireTensor{
			Length:   t.NBytes(),
			Metadata: metadata,
			Data:     reservation.Data(),
		})
		s.logger.V(2).Info("serialized tensor", "id", msg.ID, "index", i,
			"ownership", reservation.Ownership.String(), "dtype", t.DType().String(),
			"shape", t.Shape(), "bytes", t.NBytes(), "storageBytes", t.Storage().Len())
	}
	s.logger.V(1).Info("serialized message", "id", msg.ID, "type", msg.Type.String(),
		"payload", len(msg.Payload), "tensors", len(msg.Tensors),
		"referenced", len(entry.Referenced()), "cloned", len(entry.Cloned()), "copied", len(entry.Copied()))
	return entry, nil
}

func (s *Serializer) reserve(t *tensor.Tensor) (Reservation, error) {
	switch {
	case !t.Storage().Managed():
		buffer := memory.NewResizableBuffer(s.mem)
		buffer.Resize(t.NBytes())
		if err := t.CopyTo(buffer.Bytes()); err != nil {
			buffer.Release()
			return Reservation{}, err
		}
		return Reservation{Ownership: Copied, Buffer: buffer}, nil
	case !t.IsFullView() || !t.IsContiguous():
		clone, err := t.Clone(s.mem)
		if err != nil {
			return Reservation{}, err
		}
		return Reservation{Ownership: Cloned, Tensor: clone}, nil
	default:
		t.Storage().Retain()
		return Reservation{Ownership: Referenced, Tensor: t}, nil
	}
}
