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

package types

import (
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
)

// ElementType is the scalar type of a tensor element.
type ElementType uint8

const (
	Bool ElementType = iota
	Uint8
	Int8
	Int16
	Int32
	Int64
	Float16
	Float32
	Float64

	numElementTypes
)

var elementTypeNames = [...]string{
	Bool:    "bool",
	Uint8:   "uint8",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
}

func (t ElementType) Valid() bool {
	return t < numElementTypes
}

// Size returns the byte width of one element, or 0 for an unknown type.
func (t ElementType) Size() int {
	switch t {
	case Bool, Uint8, Int8:
		return 1
	case Int16, Float16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		return 0
	}
}

func (t ElementType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
	return elementTypeNames[t]
}

func ParseElementType(name string) (ElementType, error) {
	for i, n := range elementTypeNames {
		if n == name {
			return ElementType(i), nil
		}
	}
	return 0, common.Invalid("unknown element type %q", name)
}

// ArrowType returns the arrow type with the same in-memory layout. Bool
// tensors keep one byte per element and therefore map to uint8.
func (t ElementType) ArrowType() arrow.DataType {
	switch t {
	case Bool, Uint8:
		return arrow.PrimitiveTypes.Uint8
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float16:
		return arrow.FixedWidthTypes.Float16
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	default:
		return nil
	}
}
