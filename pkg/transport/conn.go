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
	"io"
	"net"
	"sync"
	"time"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/message"
)

// Conn is a Transport over a byte stream such as a TCP, unix or vsock
// connection. Sends are written one frame at a time in the order Send was
// called; receiving is sequential, one descriptor at a time.
type Conn struct {
	options

	rwc io.ReadWriteCloser

	// tail is closed once the most recently issued send is written
	sendMu sync.Mutex
	tail   chan struct{}

	readMu  sync.Mutex
	pending *message.WireMessage

	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*Conn)(nil)

func NewConn(rwc io.ReadWriteCloser, opts ...Option) *Conn {
	tail := make(chan struct{})
	close(tail)
	return &Conn{options: newOptions(opts), rwc: rwc, tail: tail}
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// interruptOn makes a blocked read or write return once ctx ends, when the
// stream supports deadlines. The returned function must be called when the
// operation is over.
func (c *Conn) interruptOn(ctx context.Context, write bool) func() {
	d, ok := c.rwc.(deadliner)
	if !ok || ctx.Done() == nil {
		return func() {}
	}
	setDeadline := d.SetReadDeadline
	if write {
		setDeadline = d.SetWriteDeadline
	}
	stop := make(chan struct{})
	fired := make(chan struct{})
	go func() {
		defer close(fired)
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Now())
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		<-fired
		if ctx.Err() != nil {
			_ = setDeadline(time.Time{})
		}
	}
}

// Send writes w asynchronously. The future completes once the data has been
// handed to the stream, or failed; a frame cut short by ctx or a stream
// error leaves the stream unusable and closes it.
func (c *Conn) Send(ctx context.Context, w *message.WireMessage) *Future {
	future := NewFuture()
	if err := c.checkEncodable(w); err != nil {
		future.Complete(err)
		return future
	}
	c.sendMu.Lock()
	prev, next := c.tail, make(chan struct{})
	c.tail = next
	c.sendMu.Unlock()
	go func() {
		defer close(next)
		<-prev
		if err := ctx.Err(); err != nil {
			future.Complete(err)
			return
		}
		buffers := net.Buffers{encodeDescriptor(w)}
		for _, buf := range w.Buffers() {
			// empty writes would block a synchronous pipe until the next read
			if len(buf) > 0 {
				buffers = append(buffers, buf)
			}
		}
		stop := c.interruptOn(ctx, true)
		_, err := buffers.WriteTo(c.rwc)
		stop()
		if err != nil {
			c.logger.Error(err, "failed to write frame", "bytes", w.NBytes())
			_ = c.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			future.Complete(common.IOError(err, "write frame"))
			return
		}
		future.Complete(nil)
	}()
	return future
}

// ReadDescriptor reads the next frame's descriptor. The returned value must
// be passed to ReadData or Discard before the next call.
func (c *Conn) ReadDescriptor(ctx context.Context) (*message.WireMessage, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.pending != nil {
		return nil, common.Invalid("previous descriptor has not been consumed")
	}
	stop := c.interruptOn(ctx, false)
	desc, err := c.decodeDescriptor(c.rwc)
	stop()
	if err != nil {
		return nil, c.readError(ctx, err, "read descriptor")
	}
	c.pending = desc
	return desc, nil
}

func (c *Conn) readError(ctx context.Context, err error, what string) error {
	if common.StatusOf(err) != nil {
		_ = c.Close()
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return common.IOError(err, what)
}

func (c *Conn) take(desc *message.WireMessage) (*message.WireMessage, error) {
	if c.pending == nil || c.pending != desc {
		return nil, common.Invalid("descriptor was not returned by ReadDescriptor")
	}
	c.pending = nil
	return desc, nil
}

// ReadData reads the frame's data into the slices bound to desc. Any
// failure closes the stream, which is left in the middle of a frame.
func (c *Conn) ReadData(ctx context.Context, desc *message.WireMessage) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if _, err := c.take(desc); err != nil {
		return err
	}
	buffers := desc.Buffers()
	if len(buffers[0]) != desc.Length {
		_ = c.Close()
		return common.Invalid("payload target has %d bytes, frame announced %d", len(buffers[0]), desc.Length)
	}
	for i, t := range desc.Tensors {
		if len(t.Data) != t.Length {
			_ = c.Close()
			return common.Invalid("tensor %d target has %d bytes, frame announced %d", i, len(t.Data), t.Length)
		}
	}
	stop := c.interruptOn(ctx, false)
	defer stop()
	for _, buf := range buffers {
		if _, err := io.ReadFull(c.rwc, buf); err != nil {
			// the stream is stuck inside a frame
			_ = c.Close()
			return c.readError(ctx, err, "read data")
		}
	}
	return nil
}

// Discard skips the data of a frame whose descriptor could not be
// allocated for. The sender cannot be told over a one-way stream; cause is
// only logged.
func (c *Conn) Discard(ctx context.Context, desc *message.WireMessage, cause error) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if _, err := c.take(desc); err != nil {
		return err
	}
	c.logger.Info("discarding frame", "bytes", desc.NBytes(), "cause", cause)
	stop := c.interruptOn(ctx, false)
	defer stop()
	if _, err := io.CopyN(io.Discard, c.rwc, int64(desc.NBytes())); err != nil {
		_ = c.Close()
		return c.readError(ctx, err, "discard data")
	}
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}
