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

import "fmt"

// MessageType tags the purpose of an rpc message. The numeric values are
// part of the wire metadata and must not be reordered.
type MessageType uint16

const (
	ScriptCall              MessageType = 0
	ScriptRet               MessageType = 1
	PythonCall              MessageType = 2
	PythonRet               MessageType = 3
	ScriptRemoteCall        MessageType = 4
	PythonRemoteCall        MessageType = 5
	RemoteRet               MessageType = 6
	ScriptRRefFetchCall     MessageType = 7
	PythonRRefFetchCall     MessageType = 8
	ScriptRRefFetchRet      MessageType = 9
	PythonRRefFetchRet      MessageType = 10
	RRefUserDelete          MessageType = 11
	RRefForkRequest         MessageType = 12
	RRefChildAccept         MessageType = 13
	RRefAck                 MessageType = 14
	ForwardAutogradReq      MessageType = 15
	ForwardAutogradResp     MessageType = 16
	BackwardAutogradReq     MessageType = 17
	BackwardAutogradResp    MessageType = 18
	CleanupAutogradContext  MessageType = 19
	CleanupAutogradResponse MessageType = 20
	Exception               MessageType = 55
	Unknown                 MessageType = 60
)

var messageTypeNames = map[MessageType]string{
	ScriptCall:              "SCRIPT_CALL",
	ScriptRet:               "SCRIPT_RET",
	PythonCall:              "PYTHON_CALL",
	PythonRet:               "PYTHON_RET",
	ScriptRemoteCall:        "SCRIPT_REMOTE_CALL",
	PythonRemoteCall:        "PYTHON_REMOTE_CALL",
	RemoteRet:               "REMOTE_RET",
	ScriptRRefFetchCall:     "SCRIPT_RREF_FETCH_CALL",
	PythonRRefFetchCall:     "PYTHON_RREF_FETCH_CALL",
	ScriptRRefFetchRet:      "SCRIPT_RREF_FETCH_RET",
	PythonRRefFetchRet:      "PYTHON_RREF_FETCH_RET",
	RRefUserDelete:          "RREF_USER_DELETE",
	RRefForkRequest:         "RREF_FORK_REQUEST",
	RRefChildAccept:         "RREF_CHILD_ACCEPT",
	RRefAck:                 "RREF_ACK",
	ForwardAutogradReq:      "FORWARD_AUTOGRAD_REQ",
	ForwardAutogradResp:     "FORWARD_AUTOGRAD_RESP",
	BackwardAutogradReq:     "BACKWARD_AUTOGRAD_REQ",
	BackwardAutogradResp:    "BACKWARD_AUTOGRAD_RESP",
	CleanupAutogradContext:  "CLEANUP_AUTOGRAD_CONTEXT_REQ",
	CleanupAutogradResponse: "CLEANUP_AUTOGRAD_CONTEXT_RESP",
	Exception:               "EXCEPTION",
	Unknown:                 "UNKNOWN",
}

func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}
