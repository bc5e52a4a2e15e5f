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

package client

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/log"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/transport"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/wire"
)

// Endpoint sends and receives Messages over a Transport. It owns the
// lifetime of everything a pending send references: the serialized entry is
// released only after the transport reports completion.
type Endpoint struct {
	transport  transport.Transport
	serializer *wire.Serializer
	allocator  *wire.Allocator
	logger     logr.Logger
}

func NewEndpoint(t transport.Transport, opts ...wire.Option) *Endpoint {
	return &Endpoint{
		transport:  t,
		serializer: wire.NewSerializer(opts...),
		allocator:  wire.NewAllocator(opts...),
		logger:     log.Log().WithName("endpoint"),
	}
}

// Send serializes msg and hands it to the transport. The returned future
// completes after the transport finished with the data and the serialized
// entry has been released; msg.Payload must stay unmodified until then.
func (e *Endpoint) Send(ctx context.Context, msg *message.Message) *transport.Future {
	done := transport.NewFuture()
	entry, err := e.serializer.Serialize(msg)
	if err != nil {
		done.Complete(err)
		return done
	}
	sent := e.transport.Send(ctx, entry.Message)
	go func() {
		<-sent.Done()
		entry.Release()
		if err := sent.Err(); err != nil {
			e.logger.Error(err, "send failed", "id", msg.ID, "type", msg.Type.String())
		}
		done.Complete(sent.Err())
	}()
	return done
}

// Recv returns the next complete message. The caller owns the returned
// message and releases it when done with its tensors.
func (e *Endpoint) Recv(ctx context.Context) (*message.Message, error) {
	desc, err := e.transport.ReadDescriptor(ctx)
	if err != nil {
		return nil, err
	}
	allocation, err := e.allocator.Allocate(desc)
	if err != nil {
		e.logger.Error(err, "dropping message", "bytes", desc.NBytes())
		if discardErr := e.transport.Discard(ctx, desc, err); discardErr != nil {
			e.logger.Error(discardErr, "failed to discard message")
		}
		return nil, err
	}
	if err := allocation.Bind(desc); err != nil {
		allocation.Message.Release()
		return nil, err
	}
	if err := e.transport.ReadData(ctx, desc); err != nil {
		allocation.Message.Release()
		return nil, err
	}
	msg, err := wire.Finalize(allocation.Message, desc)
	if err != nil {
		allocation.Message.Release()
		return nil, err
	}
	return msg, nil
}

func (e *Endpoint) Close() error {
	return e.transport.Close()
}
