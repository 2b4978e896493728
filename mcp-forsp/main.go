package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	forsp "github.com/rphilander/forsp/core"
)

var (
	conn   net.Conn
	connMu sync.Mutex
)

// send forwards a request to the forsp core and returns the response.
func send(req map[string]any) (map[string]any, error) {
	req["id"] = forsp.NextID()
	connMu.Lock()
	defer connMu.Unlock()
	if err := forsp.WriteMsg(conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp, err := forsp.ReadMsg(conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return resp, nil
}

// formatResult turns a core response into an MCP tool result.
func formatResult(resp map[string]any) (*mcp.CallToolResult, error) {
	ok, _ := resp["ok"].(bool)
	if !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return mcp.NewToolResultError(errMsg), nil
	}
	out, err := json.MarshalIndent(resp["value"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func forward(req map[string]any) (*mcp.CallToolResult, error) {
	resp, err := send(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(resp)
}

func handleEval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := map[string]any{"op": "eval", "src": src}
	if input := request.GetString("input", ""); input != "" {
		req["input"] = input
	}
	return forward(req)
}

func handleDefine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return forward(map[string]any{"op": "define", "name": name, "src": src})
}

func handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return forward(map[string]any{"op": "delete", "name": name})
}

func handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(map[string]any{"op": "list"})
}

func handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := map[string]any{"op": "step", "src": src}
	if n := request.GetInt("max_steps", 0); n > 0 {
		req["max_steps"] = n
	}
	return forward(req)
}

func handleTraces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := map[string]any{"op": "traces"}
	if n := request.GetInt("n", 0); n > 0 {
		req["n"] = n
	}
	return forward(req)
}

func handleClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return forward(map[string]any{"op": "clear"})
}

func main() {
	sockPath := os.Getenv("FORSP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/forsp.sock"
	}

	var err error
	conn, err = net.Dial("unix", sockPath)
	if err != nil {
		log.Fatalf("connect to %s: %v", sockPath, err)
	}
	defer conn.Close()
	log.Printf("connected to forsp core: %s", sockPath)

	s := server.NewMCPServer(
		"forsp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(
		mcp.NewTool("forsp_eval",
			mcp.WithDescription("Run a forsp program from an empty stack. Returns the final stack (top first) and anything printed."),
			mcp.WithString("src",
				mcp.Required(),
				mcp.Description("Program source, e.g. ' 3 $x ' 4 $y ^x ^y +"),
			),
			mcp.WithString("input",
				mcp.Description("Text consumed by the read primitive"),
			),
		),
		handleEval,
	)

	s.AddTool(
		mcp.NewTool("forsp_define",
			mcp.WithDescription("Run a program and bind the value left on top of the stack to a name in the session."),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name to bind"),
			),
			mcp.WithString("src",
				mcp.Required(),
				mcp.Description("Program whose top-of-stack result is bound, e.g. (^x ^x *)"),
			),
		),
		handleDefine,
	)

	s.AddTool(
		mcp.NewTool("forsp_delete",
			mcp.WithDescription("Delete a session definition."),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name to delete"),
			),
		),
		handleDelete,
	)

	s.AddTool(
		mcp.NewTool("forsp_list",
			mcp.WithDescription("List session definitions with their source."),
		),
		handleList,
	)

	s.AddTool(
		mcp.NewTool("forsp_step",
			mcp.WithDescription("Run a program one term at a time and return the stack after each step."),
			mcp.WithString("src",
				mcp.Required(),
				mcp.Description("Program source"),
			),
			mcp.WithNumber("max_steps",
				mcp.Description("Stop after this many steps (default 100)"),
			),
		),
		handleStep,
	)

	s.AddTool(
		mcp.NewTool("forsp_traces",
			mcp.WithDescription("Show recent evaluations: source, final stack, output, and error."),
			mcp.WithNumber("n",
				mcp.Description("Number of traces to return"),
			),
		),
		handleTraces,
	)

	s.AddTool(
		mcp.NewTool("forsp_clear",
			mcp.WithDescription("Clear the session: drop every definition and all traces."),
		),
		handleClear,
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
