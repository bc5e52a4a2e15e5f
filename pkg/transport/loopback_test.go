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

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
)

func testMessage(payload string, tensors ...string) *message.WireMessage {
	w := &message.WireMessage{
		Length:   len(payload),
		Metadata: []byte{0, 1, 0, 60},
		Payload:  []byte(payload),
	}
	for i, data := range tensors {
		w.Tensors = append(w.Tensors, message.WireTensor{
			Length:   len(data),
			Metadata: []byte{byte(i)},
			Data:     []byte(data),
		})
	}
	return w
}

// bind gives desc freshly allocated targets of the announced sizes.
func bind(desc *message.WireMessage) {
	desc.Payload = make([]byte, desc.Length)
	for i := range desc.Tensors {
		desc.Tensors[i].Data = make([]byte, desc.Tensors[i].Length)
	}
}

func assertPending(t *testing.T, f *Future) {
	t.Helper()
	select {
	case <-f.Done():
		t.Fatalf("future completed early: %v", f.Err())
	default:
	}
}

func wait(t *testing.T, f *Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-f.Done():
		return f.Err()
	case <-ctx.Done():
		t.Fatal("future did not complete")
		return nil
	}
}

func TestLoopbackRoundTrip(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	ctx := context.Background()

	sent := testMessage("abc", "0123", "", "xyz")
	future := l.Send(ctx, sent)

	desc, err := l.ReadDescriptor(ctx)
	assert.NilError(t, err)
	assertPending(t, future)
	assert.Equal(t, desc.Length, 3)
	assert.Equal(t, len(desc.Tensors), 3)
	assert.DeepEqual(t, desc.Metadata, sent.Metadata)
	for i := range desc.Tensors {
		assert.Equal(t, desc.Tensors[i].Length, sent.Tensors[i].Length)
		assert.DeepEqual(t, desc.Tensors[i].Metadata, sent.Tensors[i].Metadata)
		assert.Assert(t, desc.Tensors[i].Data == nil)
	}

	bind(desc)
	assert.NilError(t, l.ReadData(ctx, desc))
	assert.NilError(t, wait(t, future))
	assert.DeepEqual(t, desc.Buffers(), sent.Buffers())
}

func TestLoopbackOrder(t *testing.T) {
	l := NewLoopback(WithQueueSize(4))
	defer l.Close()
	ctx := context.Background()

	var futures []*Future
	for _, payload := range []string{"a", "bb", "ccc"} {
		futures = append(futures, l.Send(ctx, testMessage(payload)))
	}
	for i, payload := range []string{"a", "bb", "ccc"} {
		desc, err := l.ReadDescriptor(ctx)
		assert.NilError(t, err)
		bind(desc)
		assert.NilError(t, l.ReadData(ctx, desc))
		assert.Equal(t, string(desc.Payload), payload)
		assert.NilError(t, wait(t, futures[i]))
	}
}

func TestLoopbackCancelQueued(t *testing.T) {
	l := NewLoopback()
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	future := l.Send(ctx, testMessage("dropped"))
	cancel()
	assert.Assert(t, errors.Is(wait(t, future), context.Canceled))

	// the cancelled send is skipped by the receiver
	kept := l.Send(context.Background(), testMessage("kept"))
	desc, err := l.ReadDescriptor(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, desc.Length, len("kept"))
	bind(desc)
	assert.NilError(t, l.ReadData(context.Background(), desc))
	assert.NilError(t, wait(t, kept))
}

func TestLoopbackCancelWhileReading(t *testing.T) {
	l := NewLoopback()
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	future := l.Send(ctx, testMessage("payload", "data"))
	desc, err := l.ReadDescriptor(context.Background())
	assert.NilError(t, err)

	cancel()
	time.Sleep(10 * time.Millisecond)
	assertPending(t, future)

	bind(desc)
	assert.NilError(t, l.ReadData(context.Background(), desc))
	assert.NilError(t, wait(t, future))
	assert.Equal(t, string(desc.Tensors[0].Data), "data")
}

func TestLoopbackReadDescriptorContext(t *testing.T) {
	l := NewLoopback()
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.ReadDescriptor(ctx)
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLoopbackClose(t *testing.T) {
	l := NewLoopback()
	ctx := context.Background()

	reading := l.Send(ctx, testMessage("first"))
	queued := l.Send(ctx, testMessage("second"))
	desc, err := l.ReadDescriptor(ctx)
	assert.NilError(t, err)

	assert.NilError(t, l.Close())
	assert.NilError(t, l.Close())
	assert.Assert(t, common.IsCode(wait(t, reading), common.KClosed))
	assert.Assert(t, common.IsCode(wait(t, queued), common.KClosed))

	bind(desc)
	assert.Assert(t, common.IsCode(l.ReadData(ctx, desc), common.KInvalid))
	_, err = l.ReadDescriptor(ctx)
	assert.Assert(t, common.IsCode(err, common.KClosed))
	assert.Assert(t, common.IsCode(wait(t, l.Send(ctx, testMessage("late"))), common.KClosed))
}

func TestLoopbackDiscard(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	ctx := context.Background()

	future := l.Send(ctx, testMessage("abc", "0123"))
	desc, err := l.ReadDescriptor(ctx)
	assert.NilError(t, err)

	cause := common.AllocationError("no room")
	assert.NilError(t, l.Discard(ctx, desc, cause))
	assert.Equal(t, wait(t, future), cause)
	assert.Assert(t, common.IsCode(l.Discard(ctx, desc, cause), common.KInvalid))
}

func TestLoopbackLengthMismatch(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	ctx := context.Background()

	future := l.Send(ctx, testMessage("abc", "0123"))
	desc, err := l.ReadDescriptor(ctx)
	assert.NilError(t, err)
	bind(desc)
	desc.Tensors[0].Data = desc.Tensors[0].Data[:2]

	err = l.ReadData(ctx, desc)
	assert.Assert(t, common.IsCode(err, common.KInvalid), "%v", err)
	assert.Assert(t, common.IsCode(wait(t, future), common.KInvalid))
}

func TestLoopbackUnknownDescriptor(t *testing.T) {
	l := NewLoopback()
	defer l.Close()

	desc := testMessage("abc")
	err := l.ReadData(context.Background(), desc)
	assert.Assert(t, common.IsCode(err, common.KInvalid))
}

func TestFuture(t *testing.T) {
	f := NewFuture()
	assert.NilError(t, f.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Assert(t, errors.Is(f.Wait(ctx), context.DeadlineExceeded))
	assertPending(t, f)

	called := make(chan error, 1)
	f.OnComplete(func(err error) { called <- err })

	first := errors.New("first")
	f.Complete(first)
	f.Complete(errors.New("second"))
	assert.Equal(t, f.Err(), first)
	assert.Equal(t, f.Wait(context.Background()), first)
	assert.Equal(t, <-called, first)
}
