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
	"net"
	"os"
	"strconv"
)

const (
	IPCSocketEnv   = "TENSORWIRE_IPC_SOCKET"
	RPCEndpointEnv = "TENSORWIRE_RPC_ENDPOINT"

	defaultIPCSocket = "/var/run/tensorwire.sock"
	defaultRPCHost   = "127.0.0.1"
	defaultRPCPort   = 9600
)

func GetDefaultIPCSocket() string {
	if socket := os.Getenv(IPCSocketEnv); socket != "" {
		return socket
	}
	return defaultIPCSocket
}

// GetDefaultRPCHostAndPort reads host:port from TENSORWIRE_RPC_ENDPOINT,
// falling back per component to 127.0.0.1 and 9600.
func GetDefaultRPCHostAndPort() (string, uint16) {
	host, port := defaultRPCHost, uint16(defaultRPCPort)
	endpoint := os.Getenv(RPCEndpointEnv)
	if endpoint == "" {
		return host, port
	}
	h, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, port
	}
	if h != "" {
		host = h
	}
	if v, err := strconv.ParseUint(p, 10, 16); err == nil {
		port = uint16(v)
	}
	return host, port
}
