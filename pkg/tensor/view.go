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
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
)

// The views below share the storage of t and do not take a reference on
// it: they stay valid for as long as the caller keeps t's reference.

// Select indexes dimension dim at index, dropping that dimension.
func (t *Tensor) Select(dim int, index int64) (*Tensor, error) {
	if dim < 0 || dim >= len(t.shape) {
		return nil, common.Invalid("select: dimension %d out of range for %s", dim, t)
	}
	if index < 0 || index >= t.shape[dim] {
		return nil, common.Invalid("select: index %d out of range for dimension %d of %s", index, dim, t)
	}
	shape := make([]int64, 0, len(t.shape)-1)
	strides := make([]int64, 0, len(t.shape)-1)
	for i := range t.shape {
		if i == dim {
			continue
		}
		shape = append(shape, t.shape[i])
		strides = append(strides, t.strides[i])
	}
	return newView(t.storage, t.dtype, shape, strides, t.offset+index*t.strides[dim])
}

// Narrow keeps length entries of dimension dim starting at start.
func (t *Tensor) Narrow(dim int, start, length int64) (*Tensor, error) {
	if dim < 0 || dim >= len(t.shape) {
		return nil, common.Invalid("narrow: dimension %d out of range for %s", dim, t)
	}
	if start < 0 || length < 0 || start+length > t.shape[dim] {
		return nil, common.Invalid("narrow: range [%d, %d) out of bounds for dimension %d of %s",
			start, start+length, dim, t)
	}
	shape := append([]int64(nil), t.shape...)
	shape[dim] = length
	return newView(t.storage, t.dtype, shape, t.strides, t.offset+start*t.strides[dim])
}

// Transpose swaps two dimensions. The result is usually not contiguous.
func (t *Tensor) Transpose(a, b int) (*Tensor, error) {
	if a < 0 || a >= len(t.shape) || b < 0 || b >= len(t.shape) {
		return nil, common.Invalid("transpose: dimensions (%d, %d) out of range for %s", a, b, t)
	}
	shape := append([]int64(nil), t.shape...)
	strides := append([]int64(nil), t.strides...)
	shape[a], shape[b] = shape[b], shape[a]
	strides[a], strides[b] = strides[b], strides[a]
	return newView(t.storage, t.dtype, shape, strides, t.offset)
}
