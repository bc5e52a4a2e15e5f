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
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/tensor"
)

// Ownership records how the bytes a transport reads for one tensor are kept
// alive.
type Ownership int

const (
	// Referenced tensors are sent from their own storage, which the entry
	// holds a reference on.
	Referenced Ownership = iota
	// Cloned tensors were partial or strided views, sent from a tight
	// managed copy owned by the entry.
	Cloned
	// Copied tensors lived in foreign memory, sent from a raw buffer owned
	// by the entry.
	Copied
)

func (o Ownership) String() string {
	switch o {
	case Referenced:
		return "referenced"
	case Cloned:
		return "cloned"
	case Copied:
		return "copied"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}

// Reservation keeps the data of one serialized tensor alive. Tensor is set
// for Referenced (the original) and Cloned (the clone), Buffer for Copied.
type Reservation struct {
	Ownership Ownership
	Tensor    *tensor.Tensor
	Buffer    *memory.Buffer
}

// Data is the memory the transport reads for this tensor.
func (r *Reservation) Data() []byte {
	if r.Ownership == Copied {
		return r.Buffer.Bytes()
	}
	data, _ := r.Tensor.Bytes()
	return data
}

func (r *Reservation) release() {
	switch r.Ownership {
	case Copied:
		r.Buffer.Release()
	default:
		r.Tensor.Storage().Release()
	}
}

// Entry is the result of serializing one Message: the WireMessage handed to
// the transport and the reservations backing its data slices.
//
// The entry must be released only after the transport has signalled that it
// no longer touches Message's data, also when the send was cancelled.
// Releasing earlier hands memory back to the allocator while it may still be
// read.
type Entry struct {
	Message      *message.WireMessage
	Reservations []Reservation

	once sync.Once
}

func (e *Entry) indices(o Ownership) []int {
	var indices []int
	for i := range e.Reservations {
		if e.Reservations[i].Ownership == o {
			indices = append(indices, i)
		}
	}
	return indices
}

// Referenced, Cloned and Copied return the tensor indices kept alive in
// each way. Every index appears in exactly one of them.
func (e *Entry) Referenced() []int { return e.indices(Referenced) }
func (e *Entry) Cloned() []int     { return e.indices(Cloned) }
func (e *Entry) Copied() []int     { return e.indices(Copied) }

// Release drops every reservation. Calling it more than once is a no-op.
func (e *Entry) Release() {
	e.once.Do(func() {
		for i := range e.Reservations {
			e.Reservations[i].release()
		}
	})
}
