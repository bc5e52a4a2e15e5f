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
	"unsafe"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

// Element lists the Go types a tensor can be viewed as.
type Element interface {
	bool | uint8 | int8 | int16 | int32 | int64 | float32 | float64
}

func elementTypeOf[T Element]() types.ElementType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return types.Bool
	case uint8:
		return types.Uint8
	case int8:
		return types.Int8
	case int16:
		return types.Int16
	case int32:
		return types.Int32
	case int64:
		return types.Int64
	case float32:
		return types.Float32
	default:
		return types.Float64
	}
}

// BytesOf reinterprets values as bytes, sharing memory.
func BytesOf[T Element](values []T) []byte {
	if len(values) == 0 {
		return nil
	}
	var zero T
	//nolint:gosec // reinterpreting a typed slice is the point
	return unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*int(unsafe.Sizeof(zero)))
}

// Values returns a typed slice sharing memory with a contiguous tensor.
func Values[T Element](t *Tensor) ([]T, error) {
	if want := elementTypeOf[T](); want != t.dtype {
		return nil, common.Invalid("tensor holds %s, not %s", t.dtype, want)
	}
	data, err := t.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	//nolint:gosec // storage is aligned to the element size
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), t.Numel()), nil
}

// FromValues copies values into a new managed tensor of the given shape.
func FromValues[T Element](mem memory.Allocator, values []T, shape []int64) (*Tensor, error) {
	if Numel(shape) != int64(len(values)) {
		return nil, common.Invalid("shape %v requires %d elements, got %d", shape, Numel(shape), len(values))
	}
	t, err := Empty(mem, elementTypeOf[T](), shape)
	if err != nil {
		return nil, err
	}
	copy(t.storage.Bytes(), BytesOf(values))
	return t, nil
}

// Array exposes the logical elements of t as an arrow array. Contiguous
// tensors share memory with the array.
func (t *Tensor) Array() (arrow.Array, error) {
	data, err := t.Bytes()
	if err != nil {
		if !t.Device().HostAddressable() {
			return nil, err
		}
		data = make([]byte, t.NBytes())
		if err := t.CopyTo(data); err != nil {
			return nil, err
		}
	}
	values := memory.NewBufferBytes(data)
	arrayData := array.NewData(t.dtype.ArrowType(), int(t.Numel()), []*memory.Buffer{nil, values}, nil, 0, 0)
	defer arrayData.Release()
	return array.MakeFromData(arrayData), nil
}

// Equal reports whether a and b have the same element type, shape and
// elements. Like torch.equal, NaN never equals NaN.
func Equal(a, b *Tensor) bool {
	if a.dtype != b.dtype || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	left, err := a.Array()
	if err != nil {
		return false
	}
	defer left.Release()
	right, err := b.Array()
	if err != nil {
		return false
	}
	defer right.Release()
	return array.Equal(left, right)
}
