// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dispatch implements the Tool Dispatcher (§4.L): a JSON-RPC
// tool catalog over the control plane's core operations (query/execute,
// engine management, session lifecycle), with per-tool JSON-schema-
// shaped input validation. Transport (the TCP/stdio framing loop) is
// out of scope per spec.md §1; this package only shapes and routes
// already-decoded requests. Re-expressed in Go from
// original_source's mcp/types.rs (JsonRpcRequest/Response/Error,
// ToolCallParams) and the teacher's agent/mcp_handler.go (registry
// lookup + typed-request-struct routing pattern).
package dispatch

import "encoding/json"

// Request is a decoded JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response: exactly one of Result/Error is set.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Codes follow the JSON-RPC 2.0
// spec's reserved range for protocol-level errors; tool-level failures
// use CodeToolError.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeToolError      = -32000
)

// ToolCallParams is the params shape for a "tools/call" method,
// mirroring original_source's ToolCallParams.
type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Tool describes one callable operation for discovery via "tools/list".
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Handler executes one tool call against already-validated arguments.
type Handler func(args map[string]interface{}) (interface{}, error)
