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
	"github.com/mdlayher/vsock"
	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/transport"
	"github.com/v6d-io/v6d/go/tensorwire/pkg/wire"
)

// DialVsock connects to a peer in another VM over AF_VSOCK.
func DialVsock(contextID, port uint32, opts ...wire.Option) (*Endpoint, error) {
	conn, err := vsock.Dial(contextID, port, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to vsock %d:%d", contextID, port)
	}
	return NewEndpoint(transport.NewConn(conn), opts...), nil
}
