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
	"time"

	"github.com/pkg/errors"
)

const (
	connectRetries    = 5
	connectRetryDelay = 200 * time.Millisecond
)

// connectRetry dials until it succeeds, ctx ends or the retries are used up,
// doubling the delay between attempts.
func connectRetry(ctx context.Context, network, address string) (net.Conn, error) {
	var dialer net.Dialer
	delay := connectRetryDelay
	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		conn, err := dialer.DialContext(ctx, network, address)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "failed to connect to %s %s after %d attempts", network, address, connectRetries)
}
