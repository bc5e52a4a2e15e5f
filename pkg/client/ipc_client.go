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

	"github.com/v6d-io/v6d/go/tensorwire/pkg/transport"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/wire"
)

// DialIPC connects to a peer listening on a unix domain socket.
func DialIPC(ctx context.Context, socket string, opts ...wire.Option) (*Endpoint, error) {
	conn, err := connectRetry(ctx, "unix", socket)
	if err != nil {
		return nil, err
	}
	return NewEndpoint(transport.NewConn(conn), opts...), nil
}
