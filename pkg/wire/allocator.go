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
	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/codec"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/tensor"
)

// Allocator prepares receive buffers for incoming WireMessages. Like
// Serializer it keeps no mutable state.
type Allocator struct {
	options
}

func NewAllocator(opts ...Option) *Allocator {
	return &Allocator{options: newOptions(opts)}
}

// Allocation is a Message whose buffers are allocated but not yet filled,
// together with the slices the transport writes into.
type Allocation struct {
	Message *message.Message
	// Targets holds the payload first, then one slice per tensor, each
	// exactly as long as the corresponding descriptor length.
	Targets [][]byte
}

// Bind points the data slices of w at the allocation's targets.
func (a *Allocation) Bind(w *message.WireMessage) error {
	if len(w.Tensors)+1 != len(a.Targets) {
		return common.Invalid("wire message has %d tensors, allocation has %d", len(w.Tensors), len(a.Targets)-1)
	}
	w.Payload = a.Targets[0]
	for i := range w.Tensors {
		w.Tensors[i].Data = a.Targets[i+1]
	}
	return nil
}

// Allocate builds a Message sized after desc. Only lengths and metadata of
// desc are read. Every tensor gets its own managed storage of exactly the
// announced length; a length that disagrees with the decoded shape fails
// with an AllocationError, undecodable metadata with a MetadataDecodeError.
func (a *Allocator) Allocate(desc *message.WireMessage) (*Allocation, error) {
	if desc == nil {
		return nil, common.Invalid("cannot allocate for a nil descriptor")
	}
	if desc.Length < 0 {
		return nil, common.AllocationError("negative payload length %d", desc.Length)
	}
	msg := &message.Message{
		Payload: make([]byte, desc.Length),
		Tensors: make([]*tensor.Tensor, 0, len(desc.Tensors)),
	}
	targets := make([][]byte, 0, len(desc.Tensors)+1)
	targets = append(targets, msg.Payload)
	for i := range desc.Tensors {
		t, err := a.allocateTensor(&desc.Tensors[i])
		if err != nil {
			msg.Release()
			return nil, errors.Wrapf(err, "tensor %d", i)
		}
		msg.Tensors = append(msg.Tensors, t)
		data, _ := t.Bytes()
		targets = append(targets, data)
	}
	a.logger.V(1).Info("allocated message", "payload", desc.Length, "tensors", len(desc.Tensors),
		"bytes", desc.NBytes())
	return &Allocation{Message: msg, Targets: targets}, nil
}

func (a *Allocator) allocateTensor(desc *message.WireTensor) (*tensor.Tensor, error) {
	dtype, shape, err := codec.DecodeTensorMeta(desc.Metadata)
	if err != nil {
		return nil, err
	}
	if desc.Length < 0 {
		return nil, common.AllocationError("negative tensor length %d", desc.Length)
	}
	want, ok := tensor.NBytesOf(dtype, shape)
	if !ok {
		return nil, common.AllocationError("size of %s%v overflows", dtype, shape)
	}
	if want != desc.Length {
		return nil, common.AllocationError("length %d does not match %s%v (%d bytes)", desc.Length, dtype, shape, want)
	}
	storage, err := tensor.NewStorage(a.mem, desc.Length)
	if err != nil {
		return nil, err
	}
	t, err := tensor.New(storage, dtype, shape)
	if err != nil {
		storage.Release()
		return nil, common.AllocationError("%v", err)
	}
	return t, nil
}

// Finalize completes msg once the transport has filled every target of its
// allocation, decoding the message type and id from desc.
//
// It must be called only after the transport's completion signal. Before it,
// neither Finalize nor any reader of the tensors sees defined contents; this
// is not checked.
func Finalize(msg *message.Message, desc *message.WireMessage) (*message.Message, error) {
	if msg == nil || desc == nil {
		return nil, common.Invalid("cannot finalize without message and descriptor")
	}
	typ, id, err := codec.DecodeMessageMeta(desc.Metadata)
	if err != nil {
		return nil, err
	}
	msg.Type = typ
	msg.ID = id
	return msg, nil
}
