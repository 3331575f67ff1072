// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package dispatch

import (
	"encoding/json"
	"testing"
)

func TestDispatcher_ListTools_ReturnsRegistered(t *testing.T) {
	d := NewDispatcher()
	d.Register(Tool{Name: "ping"}, func(map[string]interface{}) (interface{}, error) { return "pong", nil })

	tools := d.ListTools()
	if len(tools) != 1 || tools[0].Name != "ping" {
		t.Fatalf("ListTools() = %+v, want [ping]", tools)
	}
}

func TestDispatcher_Dispatch_ToolsList(t *testing.T) {
	d := NewDispatcher()
	d.Register(Tool{Name: "ping"}, func(map[string]interface{}) (interface{}, error) { return "pong", nil })

	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "tools/list", ID: 1})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result type = %T, want map", resp.Result)
	}
	tools, ok := result["tools"].([]Tool)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools = %+v, want one tool", result["tools"])
	}
}

func TestDispatcher_Dispatch_ToolsCall_Success(t *testing.T) {
	d := NewDispatcher()
	d.Register(
		Tool{Name: "echo", InputSchema: schemaObject([]string{"text"}, map[string]string{"text": "string"})},
		func(args map[string]interface{}) (interface{}, error) { return args["text"], nil },
	)

	params, _ := json.Marshal(ToolCallParams{Name: "echo", Arguments: map[string]interface{}{"text": "hi"}})
	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "tools/call", Params: params, ID: 2})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "hi" {
		t.Errorf("Result = %v, want hi", resp.Result)
	}
}

func TestDispatcher_Dispatch_UnknownToolYieldsInvalidRequest(t *testing.T) {
	d := NewDispatcher()

	params, _ := json.Marshal(ToolCallParams{Name: "ghost"})
	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "tools/call", Params: params, ID: 3})
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool, got nil")
	}
	if resp.Error.Code != CodeInvalidRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, CodeInvalidRequest)
	}
}

func TestDispatcher_Dispatch_UnknownMethod(t *testing.T) {
	d := NewDispatcher()
	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "bogus", ID: 4})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("resp.Error = %+v, want CodeMethodNotFound", resp.Error)
	}
}

func TestDispatcher_Dispatch_MissingRequiredArgRejected(t *testing.T) {
	d := NewDispatcher()
	d.Register(
		Tool{Name: "echo", InputSchema: schemaObject([]string{"text"}, map[string]string{"text": "string"})},
		func(args map[string]interface{}) (interface{}, error) { return args["text"], nil },
	)

	params, _ := json.Marshal(ToolCallParams{Name: "echo", Arguments: map[string]interface{}{}})
	resp := d.Dispatch(Request{JSONRPC: "2.0", Method: "tools/call", Params: params, ID: 5})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("resp.Error = %+v, want CodeInvalidParams", resp.Error)
	}
}
