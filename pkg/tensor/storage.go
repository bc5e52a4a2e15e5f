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

package tensor

import (
	arrow "github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// Storage is the byte buffer one or more tensors view into.
//
// A managed storage is allocated from an arrow allocator and is reference
// counted: Retain keeps the bytes alive across an asynchronous operation and
// the final Release returns them to the allocator. A foreign storage wraps
// memory supplied by the caller; Retain and Release are no-ops for it since
// nothing here controls when that memory goes away.
type Storage struct {
	*arrow.Buffer

	managed bool
	device  types.Device
	size    int
}

// NewStorage allocates n zeroed bytes from mem. The storage starts with a
// single reference owned by the caller.
func NewStorage(mem arrow.Allocator, n int) (*Storage, error) {
	if n < 0 {
		return nil, common.AllocationError("negative storage size %d", n)
	}
	if mem == nil {
		mem = arrow.DefaultAllocator
	}
	buffer := arrow.NewResizableBuffer(mem)
	buffer.Resize(n)
	return &Storage{Buffer: buffer, managed: true, device: types.CPU, size: n}, nil
}

// ForeignStorage wraps data without copying it.
func ForeignStorage(data []byte) *Storage {
	return &Storage{Buffer: arrow.NewBufferBytes(data), device: types.CPU, size: len(data)}
}

// NewDeviceStorage describes n bytes living on dev. Only the size is known
// to the host, the bytes themselves are not addressable.
func NewDeviceStorage(dev types.Device, n int) *Storage {
	return &Storage{Buffer: arrow.NewBufferBytes(nil), device: dev, size: n}
}

func (s *Storage) Managed() bool {
	return s.managed
}

func (s *Storage) Device() types.Device {
	return s.device
}

// Len is the byte length of the storage, also for device storages.
func (s *Storage) Len() int {
	return s.size
}

// Bytes returns the host bytes, nil when the storage is not host
// addressable or has been released.
func (s *Storage) Bytes() []byte {
	if !s.device.HostAddressable() {
		return nil
	}
	return s.Buffer.Bytes()
}

func (s *Storage) Retain() {
	if s.managed {
		s.Buffer.Retain()
	}
}

func (s *Storage) Release() {
	if s.managed {
		s.Buffer.Release()
	}
}
