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

package types

// MessageMeta and TensorMeta are the self-describing forms of the wire
// metadata, used by the json and msgpack codecs.
type MessageMeta struct {
	Type MessageType `json:"type"`
	ID   int64       `json:"id"`
}

type TensorMeta struct {
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}
