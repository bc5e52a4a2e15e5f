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
	"net"
	"strconv"
	"strings"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/transport"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/wire"
)

// Dial connects to a peer over TCP. A missing or malformed port in
// rpcEndpoint falls back to the default port.
func Dial(ctx context.Context, rpcEndpoint string, opts ...wire.Option) (*Endpoint, error) {
	host, port := GetDefaultRPCHostAndPort()
	addresses := strings.Split(rpcEndpoint, ":")
	if addresses[0] != "" {
		host = addresses[0]
	}
	if len(addresses) > 1 {
		if p, err := strconv.ParseUint(addresses[1], 10, 16); err == nil {
			port = uint16(p)
		}
	}
	conn, err := connectRetry(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	return NewEndpoint(transport.NewConn(conn), opts...), nil
}
