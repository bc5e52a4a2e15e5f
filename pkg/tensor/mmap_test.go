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
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/v6d-io/v6d/go/tensorwire/pkg/common/types"
)

func TestMapFile(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "tensor.bin"))
	assert.NilError(t, err)
	defer file.Close()
	assert.NilError(t, file.Truncate(1024))

	mapped, err := MapFile(int(file.Fd()), 1024, false)
	assert.NilError(t, err)
	assert.Assert(t, !mapped.Managed())

	bufferBytes := mapped.Bytes()
	for i := 0; i < 1024; i++ {
		bufferBytes[i] = byte(i)
	}

	view, err := New(mapped.Storage, types.Uint8, []int64{1024})
	assert.NilError(t, err)
	values, err := Values[uint8](view)
	assert.NilError(t, err)
	for i := 0; i < 1024; i++ {
		if values[i] != byte(i) {
			t.Fatalf("buffer content not match at %d", i)
		}
	}
	assert.NilError(t, mapped.Close())
	assert.NilError(t, mapped.Close())

	// the writes went to the file
	readonly, err := MapFile(int(file.Fd()), 1024, true)
	assert.NilError(t, err)
	defer readonly.Close()
	assert.Equal(t, readonly.Bytes()[255], byte(255))
}

func TestMapFileInvalid(t *testing.T) {
	_, err := MapFile(-1, 16, true)
	assert.ErrorContains(t, err, "invalid file descriptor")
	_, err = MapFile(0, -1, true)
	assert.ErrorContains(t, err, "invalid mapping size")
}
