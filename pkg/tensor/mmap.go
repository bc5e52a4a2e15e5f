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

package tensor

import (
	"syscall"

	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common"
)

// MappedStorage is foreign storage over a shared memory mapping of a file
// descriptor. The mapping outlives any reference count, so a serializer
// always copies tensors viewing it.
type MappedStorage struct {
	*Storage

	FD   int
	Size int64
	data []byte
}

// MapFile maps size bytes of fd. A read-only mapping must not be used as a
// receive target.
func MapFile(fd int, size int64, readonly bool) (*MappedStorage, error) {
	if fd < 0 {
		return nil, common.Invalid("invalid file descriptor %d", fd)
	}
	if size < 0 {
		return nil, common.Invalid("invalid mapping size %d", size)
	}
	m := &MappedStorage{FD: fd, Size: size}
	if err := m.mmap(readonly); err != nil {
		return nil, err
	}
	m.Storage = ForeignStorage(m.data)
	return m, nil
}

func (m *MappedStorage) mmap(readonly bool) error {
	if m.Size == 0 {
		return nil
	}
	protection := syscall.PROT_READ
	if !readonly {
		protection |= syscall.PROT_WRITE
	}
	data, err := syscall.Mmap(m.FD, 0, int(m.Size), protection, syscall.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(err, "failed to mmap fd %d", m.FD)
	}
	m.data = data
	return nil
}

// Close unmaps the memory. Tensors viewing the storage must not be used
// afterwards.
func (m *MappedStorage) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := syscall.Munmap(data); err != nil {
		return errors.Wrap(err, "failed to munmap")
	}
	return nil
}
