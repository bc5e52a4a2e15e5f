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
	"github.com/go-logr/logr"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/log"
)

const (
	DefaultQueueSize       = 16
	DefaultMaxMetadataSize = 1 << 16
	DefaultMaxTensors      = 1 << 16
)

type options struct {
	queueSize       int
	maxMetadataSize int
	maxTensors      int
	logger          logr.Logger
}

type Option func(*options)

// WithQueueSize bounds how many sends a Loopback buffers before Send blocks.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithMaxMetadataSize limits each metadata blob a Conn accepts.
func WithMaxMetadataSize(n int) Option {
	return func(o *options) { o.maxMetadataSize = n }
}

// WithMaxTensors limits the tensor count of a frame a Conn accepts.
func WithMaxTensors(n int) Option {
	return func(o *options) { o.maxTensors = n }
}

func WithLogger(logger logr.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{
		queueSize:       DefaultQueueSize,
		maxMetadataSize: DefaultMaxMetadataSize,
		maxTensors:      DefaultMaxTensors,
		logger:          log.Log(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
