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

package common

import (
	"fmt"

	"github.com/pkg/errors"
)

type StatusCode int

const (
	KOK StatusCode = iota
	KInvalid
	KUnsupportedDevice
	KAllocationError
	KMetadataDecodeError
	KIOError
	KClosed
)

func (c StatusCode) String() string {
	switch c {
	case KOK:
		return "OK"
	case KInvalid:
		return "Invalid"
	case KUnsupportedDevice:
		return "UnsupportedDevice"
	case KAllocationError:
		return "AllocationError"
	case KMetadataDecodeError:
		return "MetadataDecodeError"
	case KIOError:
		return "IOError"
	case KClosed:
		return "Closed"
	default:
		return fmt.Sprintf("StatusCode(%d)", int(c))
	}
}

// Status is the error type returned by every package of this module. Callers
// match on Code, usually through IsCode since statuses are often wrapped.
type Status struct {
	Code    StatusCode
	Message string

	cause error
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

func (s *Status) Unwrap() error {
	return s.cause
}

func NewStatus(code StatusCode, format string, args ...any) *Status {
	return &Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) error {
	return NewStatus(KInvalid, format, args...)
}

func UnsupportedDevice(format string, args ...any) error {
	return NewStatus(KUnsupportedDevice, format, args...)
}

func AllocationError(format string, args ...any) error {
	return NewStatus(KAllocationError, format, args...)
}

func MetadataDecodeError(format string, args ...any) error {
	return NewStatus(KMetadataDecodeError, format, args...)
}

// IOError wraps a transport level failure. The original error stays
// reachable through errors.Is and errors.As.
func IOError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.WithMessagef(&Status{Code: KIOError, Message: err.Error(), cause: err}, format, args...)
}

// WithCode reports err under code. err stays reachable through errors.Is
// and errors.As, while IsCode sees the outer code.
func WithCode(err error, code StatusCode, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return &Status{Code: code, Message: message + ": " + err.Error(), cause: err}
}

func Closed(format string, args ...any) error {
	return NewStatus(KClosed, format, args...)
}

// StatusOf returns the first Status in err's chain, or nil.
func StatusOf(err error) *Status {
	var status *Status
	if errors.As(err, &status) {
		return status
	}
	return nil
}

func IsCode(err error, code StatusCode) bool {
	if status := StatusOf(err); status != nil {
		return status.Code == code
	}
	return false
}
