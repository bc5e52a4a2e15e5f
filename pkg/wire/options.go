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
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/go-logr/logr"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/codec"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/log"
)

type options struct {
	mem    memory.Allocator
	codec  codec.Codec
	logger logr.Logger
}

type Option func(*options)

// WithAllocator sets the allocator used for clones, copies and receive
// buffers. Defaults to memory.DefaultAllocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithCodec sets the metadata codec used when serializing. Receivers decode
// any codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

func WithLogger(logger logr.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{
		mem:    memory.DefaultAllocator,
		codec:  codec.Default,
		logger: log.Log(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
