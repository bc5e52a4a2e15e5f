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
	"fmt"
	"math"
	"math/bits"

	arrow "github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// Tensor is a typed, shaped view over a Storage. Strides and the storage
// offset are counted in elements. Several tensors may share one storage.
type Tensor struct {
	storage *Storage
	dtype   types.ElementType
	shape   []int64
	strides []int64
	offset  int64
}

// Numel is the number of elements described by shape. A scalar has one
// element; any zero dimension yields zero. It returns -1 when the count
// does not fit an int64.
func Numel(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		var ok bool
		if n, ok = mulInt64(n, d); !ok {
			return -1
		}
	}
	return n
}

// NBytesOf is the byte size of a contiguous tensor of dtype and shape. It
// reports false when the size is negative or overflows an int.
func NBytesOf(dtype types.ElementType, shape []int64) (int, bool) {
	n := Numel(shape)
	if n < 0 {
		return 0, false
	}
	size, ok := mulInt64(n, int64(dtype.Size()))
	if !ok || size > math.MaxInt {
		return 0, false
	}
	return int(size), true
}

// mulInt64 multiplies two non-negative values, reporting overflow.
func mulInt64(a, b int64) (int64, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// ContiguousStrides returns row-major strides for shape.
func ContiguousStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		if shape[i] > 1 {
			stride *= shape[i]
		}
	}
	return strides
}

func validateShape(dtype types.ElementType, shape []int64) error {
	for i, d := range shape {
		if d < 0 {
			return common.Invalid("invalid dimension at index %d: %d", i, d)
		}
	}
	if _, ok := NBytesOf(dtype, shape); !ok {
		return common.Invalid("shape %v of %s overflows", shape, dtype)
	}
	return nil
}

// New creates a contiguous tensor at the start of storage.
func New(storage *Storage, dtype types.ElementType, shape []int64) (*Tensor, error) {
	return newView(storage, dtype, shape, ContiguousStrides(shape), 0)
}

func newView(storage *Storage, dtype types.ElementType, shape, strides []int64, offset int64) (*Tensor, error) {
	if storage == nil {
		return nil, common.Invalid("tensor requires a storage")
	}
	if !dtype.Valid() {
		return nil, common.Invalid("unknown element type %s", dtype)
	}
	if err := validateShape(dtype, shape); err != nil {
		return nil, err
	}
	t := &Tensor{
		storage: storage,
		dtype:   dtype,
		shape:   append([]int64(nil), shape...),
		strides: append([]int64(nil), strides...),
		offset:  offset,
	}
	if !t.fits() {
		return nil, common.Invalid("view %v (offset %d) of %s exceeds storage of %d bytes",
			shape, offset, dtype, storage.Len())
	}
	return t, nil
}

// fits checks that the furthest addressed element lies inside the storage.
func (t *Tensor) fits() bool {
	if t.offset < 0 {
		return false
	}
	size := int64(t.ElementSize())
	if t.Numel() == 0 {
		end, ok := mulInt64(t.offset, size)
		return ok && end <= int64(t.storage.Len())
	}
	last := t.offset
	for i, d := range t.shape {
		if t.strides[i] < 0 {
			return false
		}
		span, ok := mulInt64(d-1, t.strides[i])
		if !ok || last > math.MaxInt64-span {
			return false
		}
		last += span
	}
	end, ok := mulInt64(last, size)
	return ok && end <= int64(t.storage.Len())-size
}

// Empty allocates a zero-filled contiguous tensor from mem.
func Empty(mem arrow.Allocator, dtype types.ElementType, shape []int64) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, common.Invalid("unknown element type %s", dtype)
	}
	if err := validateShape(dtype, shape); err != nil {
		return nil, err
	}
	n, _ := NBytesOf(dtype, shape)
	storage, err := NewStorage(mem, n)
	if err != nil {
		return nil, err
	}
	t, err := New(storage, dtype, shape)
	if err != nil {
		storage.Release()
		return nil, err
	}
	return t, nil
}

// FromBlob views caller supplied bytes as a tensor without copying. The
// resulting tensor is backed by foreign storage.
func FromBlob(data []byte, dtype types.ElementType, shape []int64) (*Tensor, error) {
	return New(ForeignStorage(data), dtype, shape)
}

func (t *Tensor) Storage() *Storage {
	return t.storage
}

func (t *Tensor) DType() types.ElementType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return t.shape
}

func (t *Tensor) Strides() []int64 {
	return t.strides
}

func (t *Tensor) StorageOffset() int64 {
	return t.offset
}

func (t *Tensor) Numel() int64 {
	return Numel(t.shape)
}

func (t *Tensor) ElementSize() int {
	return t.dtype.Size()
}

// NBytes is the tight logical size, numel * element size.
func (t *Tensor) NBytes() int {
	return int(t.Numel()) * t.ElementSize()
}

func (t *Tensor) Device() types.Device {
	return t.storage.Device()
}

// IsContiguous reports whether the elements are laid out row-major without
// gaps. Dimensions of size one never break contiguity.
func (t *Tensor) IsContiguous() bool {
	expected := int64(1)
	for i := len(t.shape) - 1; i >= 0; i-- {
		if t.shape[i] == 1 {
			continue
		}
		if t.strides[i] != expected {
			return false
		}
		expected *= t.shape[i]
	}
	return true
}

// IsFullView reports whether the tensor spans its whole storage.
func (t *Tensor) IsFullView() bool {
	return t.NBytes() == t.storage.Len()
}

// Bytes returns the tensor's bytes when it is contiguous and host
// addressable, sharing memory with the storage.
func (t *Tensor) Bytes() ([]byte, error) {
	if !t.IsContiguous() {
		return nil, common.Invalid("tensor %s is not contiguous", t)
	}
	data := t.storage.Bytes()
	if data == nil && t.storage.Len() > 0 {
		return nil, common.UnsupportedDevice("storage on %s is not host addressable", t.Device())
	}
	start := int(t.offset) * t.ElementSize()
	return data[start : start+t.NBytes()], nil
}

// Release drops the tensor's reference to its storage.
func (t *Tensor) Release() {
	t.storage.Release()
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s%v)", t.dtype, t.shape)
}
