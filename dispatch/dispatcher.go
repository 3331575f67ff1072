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

package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"

	"securedb/platform/shared/coreerr"
)

type registeredTool struct {
	tool    Tool
	handler Handler
}

// Dispatcher routes decoded JSON-RPC requests to registered tools,
// validating arguments against each tool's input_schema before
// invocation. Grounded on the teacher's mcpRegistry lookup-then-invoke
// pattern (agent/mcp_handler.go), generalized from an HTTP-route-per-
// operation layout into a single JSON-RPC "tools/call" dispatch point
// per original_source's mcp/server.rs.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewDispatcher constructs an empty Dispatcher. Use Register to
// populate its tool catalog, or NewControlPlaneDispatcher for the full
// catalog wired to a Dependencies set.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{tools: make(map[string]registeredTool)}
}

// Register adds a tool to the catalog, keyed by tool.Name.
func (d *Dispatcher) Register(tool Tool, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[tool.Name] = registeredTool{tool: tool, handler: handler}
}

// ListTools returns the tool catalog for a "tools/list" request.
func (d *Dispatcher) ListTools() []Tool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Tool, 0, len(d.tools))
	for _, rt := range d.tools {
		out = append(out, rt.tool)
	}
	return out
}

// Dispatch routes req to its tool (for method "tools/call") or answers
// "tools/list" directly, always returning a well-formed Response.
func (d *Dispatcher) Dispatch(req Request) Response {
	switch req.Method {
	case "tools/list":
		return Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{"tools": d.ListTools()}}
	case "tools/call":
		return d.dispatchToolCall(req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (d *Dispatcher) dispatchToolCall(req Request) Response {
	var params ToolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidRequest, "malformed tool call params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "tool name is required")
	}

	d.mu.RLock()
	rt, ok := d.tools[params.Name]
	d.mu.RUnlock()
	if !ok {
		return errorResponse(req.ID, CodeInvalidRequest, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if args == nil {
		args = make(map[string]interface{})
	}
	if err := validateArgs(rt.tool.InputSchema, args); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, err.Error())
	}

	result, err := rt.handler(args)
	if err != nil {
		return errorResponse(req.ID, toolErrorCode(err), err.Error())
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(id interface{}, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

// toolErrorCode maps a coreerr.Kind to a JSON-RPC error code where a
// natural mapping exists, falling back to CodeToolError for everything
// else (the tool executed but failed on its own terms).
func toolErrorCode(err error) int {
	coreErr, ok := err.(*coreerr.Error)
	if !ok {
		return CodeToolError
	}
	switch coreErr.Kind {
	case coreerr.InvalidParams, coreerr.InvalidRequest:
		return CodeInvalidParams
	case coreerr.NotFound:
		return CodeToolError
	default:
		return CodeToolError
	}
}
