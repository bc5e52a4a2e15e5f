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

package message

// WireTensor describes one tensor on the wire. Data is only set while the
// tensor is being written or read and must then reference exactly Length
// bytes that stay valid until the transport signals completion.
type WireTensor struct {
	Length   int
	Metadata []byte
	Data     []byte
}

// WireMessage is the transport level form of a Message. Tensors keeps the
// order of Message.Tensors.
type WireMessage struct {
	Length   int
	Metadata []byte
	Payload  []byte
	Tensors  []WireTensor
}

// Descriptor returns the lengths and metadata of w without any data, which
// is what a receiver learns before it has allocated buffers.
func (w *WireMessage) Descriptor() *WireMessage {
	desc := &WireMessage{
		Length:   w.Length,
		Metadata: append([]byte(nil), w.Metadata...),
		Tensors:  make([]WireTensor, len(w.Tensors)),
	}
	for i, t := range w.Tensors {
		desc.Tensors[i] = WireTensor{Length: t.Length, Metadata: append([]byte(nil), t.Metadata...)}
	}
	return desc
}

// Buffers lists the data slices, payload first, then tensors in order.
func (w *WireMessage) Buffers() [][]byte {
	buffers := make([][]byte, 0, len(w.Tensors)+1)
	buffers = append(buffers, w.Payload)
	for _, t := range w.Tensors {
		buffers = append(buffers, t.Data)
	}
	return buffers
}

// NBytes is the total data size of the message.
func (w *WireMessage) NBytes() int {
	n := w.Length
	for _, t := range w.Tensors {
		n += t.Length
	}
	return n
}
