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
)

// CopyTo writes the logical bytes of t into dst in row-major order. dst
// must hold at least NBytes bytes.
func (t *Tensor) CopyTo(dst []byte) error {
	if len(dst) < t.NBytes() {
		return common.Invalid("copy: destination holds %d bytes, %s needs %d", len(dst), t, t.NBytes())
	}
	if t.NBytes() == 0 {
		return nil
	}
	src := t.storage.Bytes()
	if src == nil {
		return common.UnsupportedDevice("storage on %s is not host addressable", t.Device())
	}
	if t.IsContiguous() {
		start := int(t.offset) * t.ElementSize()
		copy(dst, src[start:start+t.NBytes()])
		return nil
	}
	gather(dst, src, t.shape, t.strides, t.offset, t.ElementSize())
	return nil
}

// gather walks shape in row-major order, copying the innermost dimension as
// a single run when it is unit strided.
func gather(dst, src []byte, shape, strides []int64, offset int64, size int) int {
	if len(shape) == 0 {
		start := int(offset) * size
		return copy(dst, src[start:start+size])
	}
	if len(shape) == 1 && strides[0] == 1 {
		start := int(offset) * size
		return copy(dst, src[start:start+int(shape[0])*size])
	}
	written := 0
	for i := int64(0); i < shape[0]; i++ {
		written += gather(dst[written:], src, shape[1:], strides[1:], offset+i*strides[0], size)
	}
	return written
}

// Clone copies t into a newly allocated, contiguous, managed storage of
// exactly NBytes bytes. The clone owns the only reference to its storage.
func (t *Tensor) Clone(mem arrow.Allocator) (*Tensor, error) {
	storage, err := NewStorage(mem, t.NBytes())
	if err != nil {
		return nil, err
	}
	if err := t.CopyTo(storage.Bytes()); err != nil {
		storage.Release()
		return nil, err
	}
	clone, err := New(storage, t.dtype, t.shape)
	if err != nil {
		storage.Release()
		return nil, err
	}
	return clone, nil
}
