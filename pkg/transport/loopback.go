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
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
)

type sendState int

const (
	queued sendState = iota
	reading
	finished
)

type pendingSend struct {
	msg    *message.WireMessage
	future *Future

	mu    sync.Mutex
	state sendState
}

// abort completes a send that the receiver has not started reading. A send
// being read is completed by the reader once its copies are done.
func (p *pendingSend) abort(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != queued {
		return false
	}
	p.state = finished
	p.future.Complete(err)
	return true
}

func (p *pendingSend) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = finished
	p.future.Complete(err)
}

// Loopback is an in-process Transport: data is copied straight from the
// sender's slices into the receiver's targets. Sends are delivered in order.
type Loopback struct {
	options

	queue     chan *pendingSend
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	reading map[*message.WireMessage]*pendingSend
}

var _ Transport = (*Loopback)(nil)

func NewLoopback(opts ...Option) *Loopback {
	o := newOptions(opts)
	return &Loopback{
		options: o,
		queue:   make(chan *pendingSend, o.queueSize),
		closed:  make(chan struct{}),
		reading: make(map[*message.WireMessage]*pendingSend),
	}
}

// Send queues w. If ctx ends while w is still queued the future completes
// with ctx's error; once the receiver started copying, the copy runs to the
// end before the future completes.
func (l *Loopback) Send(ctx context.Context, w *message.WireMessage) *Future {
	p := &pendingSend{msg: w, future: NewFuture()}
	select {
	case <-l.closed:
		p.finish(common.Closed("loopback is closed"))
		return p.future
	default:
	}
	select {
	case l.queue <- p:
	case <-l.closed:
		p.finish(common.Closed("loopback is closed"))
		return p.future
	case <-ctx.Done():
		p.finish(ctx.Err())
		return p.future
	}
	go func() {
		select {
		case <-ctx.Done():
			if p.abort(ctx.Err()) {
				l.logger.V(1).Info("send cancelled before delivery", "bytes", w.NBytes())
			}
		case <-l.closed:
			p.abort(common.Closed("loopback is closed"))
		case <-p.future.Done():
		}
	}()
	return p.future
}

func (l *Loopback) ReadDescriptor(ctx context.Context) (*message.WireMessage, error) {
	for {
		select {
		case p := <-l.queue:
			p.mu.Lock()
			if p.state != queued {
				p.mu.Unlock()
				continue
			}
			p.state = reading
			p.mu.Unlock()

			desc := p.msg.Descriptor()
			l.mu.Lock()
			select {
			case <-l.closed:
				l.mu.Unlock()
				p.finish(common.Closed("loopback is closed"))
				return nil, common.Closed("loopback is closed")
			default:
			}
			l.reading[desc] = p
			l.mu.Unlock()
			return desc, nil
		case <-l.closed:
			return nil, common.Closed("loopback is closed")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Loopback) take(desc *message.WireMessage) (*pendingSend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.reading[desc]
	if !ok {
		return nil, common.Invalid("descriptor was not returned by ReadDescriptor")
	}
	delete(l.reading, desc)
	return p, nil
}

// ReadData copies the sender's data into the slices bound to desc, one
// goroutine per buffer, then completes the sender's future.
func (l *Loopback) ReadData(ctx context.Context, desc *message.WireMessage) error {
	p, err := l.take(desc)
	if err != nil {
		return err
	}
	src, dst := p.msg.Buffers(), desc.Buffers()
	for i := range src {
		if len(dst[i]) != len(src[i]) {
			err := common.Invalid("buffer %d has %d bytes, sender announced %d", i, len(dst[i]), len(src[i]))
			p.finish(err)
			return err
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range src {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			copy(dst[i], src[i])
			return nil
		})
	}
	err = g.Wait()
	p.finish(err)
	return err
}

// Discard drops a message the receiver cannot take. Its sender is completed
// with cause.
func (l *Loopback) Discard(_ context.Context, desc *message.WireMessage, cause error) error {
	p, err := l.take(desc)
	if err != nil {
		return err
	}
	if cause == nil {
		cause = common.Invalid("message discarded by receiver")
	}
	p.finish(cause)
	return nil
}

// Close fails every send whose data has not started to be read.
func (l *Loopback) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.mu.Lock()
		for desc, p := range l.reading {
			p.finish(common.Closed("loopback is closed"))
			delete(l.reading, desc)
		}
		l.mu.Unlock()
		for {
			select {
			case p := <-l.queue:
				p.abort(common.Closed("loopback is closed"))
			default:
				return
			}
		}
	})
	return nil
}
