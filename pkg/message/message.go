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

// Package message defines the two representations of an rpc message: the
// logical Message handed between rpc endpoints and the WireMessage handed to
// a transport.
package message

import (
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/tensor"
)

// Message is the unit exchanged by rpc endpoints. It is mutable before it is
// serialized and after it has been finalized, never while a transfer
// involving it is in flight.
type Message struct {
	Payload []byte
	Tensors []*tensor.Tensor
	Type    types.MessageType
	ID      int64
}

func New(payload []byte, tensors []*tensor.Tensor, typ types.MessageType) *Message {
	return &Message{Payload: payload, Tensors: tensors, Type: typ}
}

// Release drops the message's references to its tensors' storages.
func (m *Message) Release() {
	for _, t := range m.Tensors {
		if t != nil {
			t.Release()
		}
	}
}
