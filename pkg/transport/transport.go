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

// Package transport moves WireMessages between endpoints. A transport reads
// a sender's data slices asynchronously, so whatever keeps them alive must
// be held until the Future returned by Send completes.
package transport

import (
	"context"
	"sync"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
)

// Transport is the contract the client endpoint relies on.
//
// Receiving is two-phased: ReadDescriptor returns the lengths and metadata
// of the next message, the caller allocates and binds buffers into that very
// descriptor, then ReadData fills them. A descriptor the caller cannot
// allocate for is given back with Discard.
type Transport interface {
	Send(ctx context.Context, w *message.WireMessage) *Future
	ReadDescriptor(ctx context.Context) (*message.WireMessage, error)
	ReadData(ctx context.Context, desc *message.WireMessage) error
	Discard(ctx context.Context, desc *message.WireMessage, cause error) error
	Close() error
}

// Future is the completion signal of one send. It completes exactly once;
// once Done is closed the transport no longer touches the sent slices.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has an effect.
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err is the transport's result, nil before Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future completes or ctx ends. An ended ctx does not
// complete the future.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete runs fn with the result once the future completes.
func (f *Future) OnComplete(fn func(error)) {
	go func() {
		<-f.done
		fn(f.err)
	}()
}
