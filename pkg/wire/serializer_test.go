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
	"os"
	"testing"

	"github.com/apache/arrow/go/v11/arrow/memory"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/codec"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/tensor"
)

func ones[T int32 | float32](n int) []T {
	values := make([]T, n)
	for i := range values {
		values[i] = 1
	}
	return values
}

func randn(n int) []float32 {
	values := make([]float32, n)
	state := uint32(12345)
	for i := range values {
		state = state*1664525 + 1013904223
		values[i] = float32(state>>8)/float32(1<<24) - 0.5
	}
	return values
}

func dataOf(t *testing.T, x *tensor.Tensor) []byte {
	t.Helper()
	data, err := x.Bytes()
	assert.NilError(t, err)
	return data
}

// transfer plays the transport: it announces the descriptor, lets the
// allocator prepare targets and copies the sender's data into them.
func transfer(t *testing.T, a *Allocator, sent *message.WireMessage) (*message.Message, *message.WireMessage) {
	t.Helper()
	desc := sent.Descriptor()
	assert.Equal(t, len(desc.Tensors), len(sent.Tensors))

	allocation, err := a.Allocate(desc)
	assert.NilError(t, err)
	assert.Equal(t, len(allocation.Message.Tensors), len(desc.Tensors))
	assert.NilError(t, allocation.Bind(desc))

	for i, src := range sent.Buffers() {
		dst := desc.Buffers()[i]
		assert.Equal(t, len(dst), len(src))
		copy(dst, src)
	}
	msg, err := Finalize(allocation.Message, desc)
	assert.NilError(t, err)
	return msg, desc
}

func TestSerializeBase(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t1, err := tensor.FromValues(mem, ones[int32](1024), []int64{1024})
	assert.NilError(t, err)
	defer t1.Release()
	t2, err := tensor.FromValues(mem, ones[float32](1024), []int64{1024})
	assert.NilError(t, err)
	defer t2.Release()

	payload := []byte{'1', '2', '3'}
	payloadCopy := append([]byte(nil), payload...)
	sending := message.New(payload, []*tensor.Tensor{t1, t2}, types.Unknown)
	sending.ID = 100

	allocated := mem.CurrentAlloc()
	entry, err := NewSerializer(WithAllocator(mem)).Serialize(sending)
	assert.NilError(t, err)
	defer entry.Release()
	assert.Equal(t, mem.CurrentAlloc(), allocated, "zero-copy serialization must not allocate")

	sent := entry.Message
	assert.Equal(t, len(sent.Tensors), 2)
	assert.DeepEqual(t, entry.Referenced(), []int{0, 1})
	assert.Check(t, is.Len(entry.Cloned(), 0))
	assert.Check(t, is.Len(entry.Copied(), 0))
	assert.Equal(t, &sent.Tensors[0].Data[0], &dataOf(t, t1)[0])
	assert.Equal(t, &sent.Tensors[1].Data[0], &dataOf(t, t2)[0])
	assert.Equal(t, &sent.Payload[0], &payload[0])
	assert.Equal(t, sent.Length, 3)

	receiving, _ := transfer(t, NewAllocator(WithAllocator(mem)), sent)
	defer receiving.Release()

	assert.Equal(t, receiving.Type, types.Unknown)
	assert.DeepEqual(t, receiving.Payload, payloadCopy)
	assert.Equal(t, receiving.ID, int64(100))
	assert.Assert(t, tensor.Equal(t1, receiving.Tensors[0]))
	assert.Assert(t, tensor.Equal(t2, receiving.Tensors[1]))
}

func TestSerializeRecopySparseTensors(t *testing.T) {
	const k1K = 1024
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	base, err := tensor.FromValues(mem, randn(k1K*k1K), []int64{k1K, k1K})
	assert.NilError(t, err)
	defer base.Release()
	tiny, err := base.Select(0, 2)
	assert.NilError(t, err)
	assert.Equal(t, tiny.Numel(), int64(k1K))
	assert.Equal(t, tiny.Storage().Len(), k1K*k1K*4)

	sending := message.New([]byte("123"), []*tensor.Tensor{base, tiny}, types.Unknown)
	entry, err := NewSerializer(WithAllocator(mem)).Serialize(sending)
	assert.NilError(t, err)
	defer entry.Release()

	sent := entry.Message
	assert.Equal(t, len(entry.Reservations), 2)
	assert.Equal(t, len(sent.Tensors), 2)
	assert.DeepEqual(t, entry.Referenced(), []int{0})
	assert.DeepEqual(t, entry.Cloned(), []int{1})
	assert.Assert(t, tensor.Equal(base, entry.Reservations[0].Tensor))
	assert.Assert(t, tensor.Equal(tiny, entry.Reservations[1].Tensor))

	assert.Equal(t, &base.Storage().Bytes()[0], &sent.Tensors[0].Data[0])
	assert.Assert(t, &tiny.Storage().Bytes()[0] != &sent.Tensors[1].Data[0])
	assert.Assert(t, &dataOf(t, tiny)[0] != &sent.Tensors[1].Data[0])
	assert.Equal(t, sent.Tensors[1].Length, tiny.ElementSize()*k1K)
	assert.Equal(t, len(sent.Tensors[1].Data), 4096)
	assert.Equal(t, entry.Reservations[1].Tensor.Storage().Len(), 4096)
}

func TestSerializeNoDeleterTensors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	blob1 := []float32{.8, .2}
	blob2 := []float32{.7, .5, .9}
	t1, err := tensor.FromBlob(tensor.BytesOf(blob1), types.Float32, []int64{int64(len(blob1))})
	assert.NilError(t, err)
	t2, err := tensor.FromBlob(tensor.BytesOf(blob2), types.Float32, []int64{int64(len(blob2))})
	assert.NilError(t, err)

	sending := message.New([]byte("123"), []*tensor.Tensor{t1, t2}, types.Unknown)
	entry, err := NewSerializer(WithAllocator(mem)).Serialize(sending)
	assert.NilError(t, err)

	sent := entry.Message
	assert.DeepEqual(t, entry.Copied(), []int{0, 1})
	assert.Equal(t, len(sent.Tensors), 2)
	for i, src := range []*tensor.Tensor{t1, t2} {
		copied := entry.Reservations[i].Buffer
		assert.Equal(t, copied.Len(), sent.Tensors[i].Length)
		assert.Equal(t, copied.Len(), src.NBytes())
		assert.Equal(t, &copied.Bytes()[0], &sent.Tensors[i].Data[0])
		assert.DeepEqual(t, copied.Bytes(), src.Storage().Bytes())
		assert.Assert(t, &copied.Bytes()[0] != &src.Storage().Bytes()[0])
	}
	assert.Assert(t, mem.CurrentAlloc() > 0)

	entry.Release()
	entry.Release()
	assert.Equal(t, mem.CurrentAlloc(), 0)
}

func TestSerializeForeignPartialView(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	blob := []int64{1, 2, 3, 4, 5, 6}
	matrix, err := tensor.FromBlob(tensor.BytesOf(blob), types.Int64, []int64{3, 2})
	assert.NilError(t, err)
	row, err := matrix.Select(0, 1)
	assert.NilError(t, err)

	entry, err := NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, []*tensor.Tensor{row}, types.ScriptCall))
	assert.NilError(t, err)
	defer entry.Release()
	assert.DeepEqual(t, entry.Copied(), []int{0})
	assert.DeepEqual(t, entry.Message.Tensors[0].Data, tensor.BytesOf([]int64{3, 4}))
}

func TestSerializeNonContiguousFullView(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	matrix, err := tensor.FromValues(mem, []float32{0, 1, 2, 3, 4, 5}, []int64{2, 3})
	assert.NilError(t, err)
	defer matrix.Release()
	transposed, err := matrix.Transpose(0, 1)
	assert.NilError(t, err)
	assert.Assert(t, transposed.IsFullView())

	entry, err := NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, []*tensor.Tensor{transposed}, types.ScriptCall))
	assert.NilError(t, err)
	defer entry.Release()
	assert.DeepEqual(t, entry.Cloned(), []int{0})
	assert.DeepEqual(t, entry.Message.Tensors[0].Data, tensor.BytesOf([]float32{0, 3, 1, 4, 2, 5}))

	receiving, _ := transfer(t, NewAllocator(WithAllocator(mem)), entry.Message)
	defer receiving.Release()
	assert.Assert(t, tensor.Equal(transposed, receiving.Tensors[0]))
}

func TestSerializeUnsupportedDevice(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	host, err := tensor.FromBlob(tensor.BytesOf([]float32{1, 2}), types.Float32, []int64{2})
	assert.NilError(t, err)
	device, err := tensor.New(tensor.NewDeviceStorage(types.CUDA, 8), types.Float32, []int64{2})
	assert.NilError(t, err)

	_, err = NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, []*tensor.Tensor{host, device}, types.ScriptCall))
	assert.Assert(t, common.IsCode(err, common.KUnsupportedDevice), "%v", err)
	assert.ErrorContains(t, err, "cuda")
	assert.Equal(t, mem.CurrentAlloc(), 0, "rejected before any copy")
}

func TestSerializeInvalid(t *testing.T) {
	s := NewSerializer()
	_, err := s.Serialize(nil)
	assert.Assert(t, common.IsCode(err, common.KInvalid))
	_, err = s.Serialize(message.New(nil, []*tensor.Tensor{nil}, types.ScriptCall))
	assert.Assert(t, common.IsCode(err, common.KInvalid))
	_, err = s.Serialize(message.New(nil, nil, types.MessageType(1000)))
	assert.Assert(t, common.IsCode(err, common.KInvalid))
}

func TestSerializeCodecs(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	x, err := tensor.FromValues(mem, []int16{1, 2, 3, 4, 5, 6}, []int64{2, 1, 3})
	assert.NilError(t, err)
	defer x.Release()

	for _, c := range []codec.Codec{codec.Binary, codec.JSON, codec.MsgPack} {
		sending := message.New([]byte("payload"), []*tensor.Tensor{x}, types.PythonCall)
		sending.ID = -7
		entry, err := NewSerializer(WithAllocator(mem), WithCodec(c)).Serialize(sending)
		assert.NilError(t, err)
		assert.Equal(t, codec.Kind(entry.Message.Metadata[0]), c.Kind())

		receiving, _ := transfer(t, NewAllocator(WithAllocator(mem)), entry.Message)
		entry.Release()
		assert.Equal(t, receiving.Type, types.PythonCall)
		assert.Equal(t, receiving.ID, int64(-7))
		assert.DeepEqual(t, receiving.Tensors[0].Shape(), []int64{2, 1, 3})
		assert.Assert(t, tensor.Equal(x, receiving.Tensors[0]))
		receiving.Release()
	}
}

func TestSerializeKeepsReferencedStorageAlive(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	x, err := tensor.FromValues(mem, []float64{1, 2, 3}, []int64{3})
	assert.NilError(t, err)
	entry, err := NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, []*tensor.Tensor{x}, types.ScriptCall))
	assert.NilError(t, err)

	// the sender drops its tensor while the transfer is pending
	x.Release()
	assert.DeepEqual(t, entry.Message.Tensors[0].Data, tensor.BytesOf([]float64{1, 2, 3}))
	assert.Assert(t, mem.CurrentAlloc() > 0)

	entry.Release()
}

func TestDescriptorCountMatches(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	var tensors []*tensor.Tensor
	for i := 0; i < 5; i++ {
		x, err := tensor.Empty(mem, types.Uint8, []int64{int64(i)})
		assert.NilError(t, err)
		defer x.Release()
		tensors = append(tensors, x)
	}
	entry, err := NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, tensors, types.ScriptCall))
	assert.NilError(t, err)
	defer entry.Release()
	assert.Equal(t, len(entry.Message.Tensors), len(tensors))
	for i, x := range tensors {
		assert.Equal(t, entry.Message.Tensors[i].Length, x.NBytes())
	}
}

func TestSerializeMappedStorage(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f, err := os.CreateTemp(t.TempDir(), "tensor")
	assert.NilError(t, err)
	defer f.Close()
	_, err = f.Write(tensor.BytesOf([]int32{4, 5, 6, 7}))
	assert.NilError(t, err)

	mapped, err := tensor.MapFile(int(f.Fd()), 16, true)
	assert.NilError(t, err)
	defer mapped.Close()
	x, err := tensor.New(mapped.Storage, types.Int32, []int64{4})
	assert.NilError(t, err)

	entry, err := NewSerializer(WithAllocator(mem)).Serialize(message.New(nil, []*tensor.Tensor{x}, types.ScriptCall))
	assert.NilError(t, err)
	defer entry.Release()
	assert.DeepEqual(t, entry.Copied(), []int{0})
	assert.DeepEqual(t, entry.Message.Tensors[0].Data, tensor.BytesOf([]int32{4, 5, 6, 7}))
}
