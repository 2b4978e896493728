package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	forsp "github.com/rphilander/forsp/core"
)

const maxBodySize = 1 << 20

// --- types ---

// EvalRequest is the body of POST /eval and POST /step. A text/plain body
// is taken as Src.
type EvalRequest struct {
	Src      string `json:"src"`
	Input    string `json:"input,omitempty"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

type DefineRequest struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// --- gateway ---

// Gateway serves the core's ops over HTTP. It holds one connection to the
// core socket and redials when it breaks.
type Gateway struct {
	sockPath string
	timeout  time.Duration

	mu   sync.Mutex // serializes round trips on conn
	conn net.Conn
}

func NewGateway(sockPath string) *Gateway {
	return &Gateway{sockPath: sockPath, timeout: 30 * time.Second}
}

// call sends one request to the core and waits for its response.
func (g *Gateway) call(req map[string]any) (map[string]any, error) {
	req["id"] = forsp.NextID()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		conn, err := net.Dial("unix", g.sockPath)
		if err != nil {
			return nil, fmt.Errorf("connect to core: %w", err)
		}
		g.conn = conn
	}
	g.conn.SetDeadline(time.Now().Add(g.timeout))

	resp, err := g.roundTrip(req)
	if err != nil {
		g.conn.Close()
		g.conn = nil
		return nil, err
	}
	if resp["id"] != req["id"] {
		g.conn.Close()
		g.conn = nil
		return nil, fmt.Errorf("response id %v does not match request %v", resp["id"], req["id"])
	}
	return resp, nil
}

func (g *Gateway) roundTrip(req map[string]any) (map[string]any, error) {
	if err := forsp.WriteMsg(g.conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp, err := forsp.ReadMsg(g.conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return resp, nil
}

func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
}

func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", g.handleManual)
	mux.HandleFunc("POST /eval", g.handleEval)
	mux.HandleFunc("POST /step", g.handleStep)
	mux.HandleFunc("GET /defs", g.handleList)
	mux.HandleFunc("POST /defs", g.handleDefine)
	mux.HandleFunc("DELETE /defs/{name}", g.handleDelete)
	mux.HandleFunc("GET /traces", g.handleTraces)
	mux.HandleFunc("POST /clear", g.handleClear)
	return mux
}

// forward relays a core request and writes the result. Evaluation errors
// are 422; an unreachable core is 502.
func (g *Gateway) forward(w http.ResponseWriter, req map[string]any) {
	resp, err := g.call(req)
	if err != nil {
		log.Printf("core request %v: %v", req["op"], err)
		writeJSON(w, http.StatusBadGateway, &Response{Error: err.Error()})
		return
	}
	if ok, _ := resp["ok"].(bool); !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "core error"
		}
		writeJSON(w, http.StatusUnprocessableEntity, &Response{Error: errMsg})
		return
	}
	writeJSON(w, http.StatusOK, &Response{OK: true, Value: resp["value"]})
}

func (g *Gateway) handleManual(w http.ResponseWriter, r *http.Request) {
	g.forward(w, map[string]any{"op": ""})
}

func (g *Gateway) handleEval(w http.ResponseWriter, r *http.Request) {
	var body EvalRequest
	if !readEvalRequest(w, r, &body) {
		return
	}
	req := map[string]any{"op": "eval", "src": body.Src}
	if body.Input != "" {
		req["input"] = body.Input
	}
	g.forward(w, req)
}

func (g *Gateway) handleStep(w http.ResponseWriter, r *http.Request) {
	var body EvalRequest
	if !readEvalRequest(w, r, &body) {
		return
	}
	req := map[string]any{"op": "step", "src": body.Src}
	if body.MaxSteps > 0 {
		req["max_steps"] = body.MaxSteps
	}
	if body.Input != "" {
		req["input"] = body.Input
	}
	g.forward(w, req)
}

func (g *Gateway) handleList(w http.ResponseWriter, r *http.Request) {
	g.forward(w, map[string]any{"op": "list"})
}

func (g *Gateway) handleDefine(w http.ResponseWriter, r *http.Request) {
	var body DefineRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, &Response{Error: fmt.Sprintf("decode body: %v", err)})
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, &Response{Error: "missing name"})
		return
	}
	g.forward(w, map[string]any{"op": "define", "name": body.Name, "src": body.Src})
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	g.forward(w, map[string]any{"op": "delete", "name": r.PathValue("name")})
}

func (g *Gateway) handleTraces(w http.ResponseWriter, r *http.Request) {
	req := map[string]any{"op": "traces"}
	if s := r.URL.Query().Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, &Response{Error: fmt.Sprintf("invalid n: %q", s)})
			return
		}
		req["n"] = n
	}
	g.forward(w, req)
}

func (g *Gateway) handleClear(w http.ResponseWriter, r *http.Request) {
	g.forward(w, map[string]any{"op": "clear"})
}

func readEvalRequest(w http.ResponseWriter, r *http.Request, body *EvalRequest) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &Response{Error: "failed to read body"})
		return false
	}
	if r.Header.Get("Content-Type") == "text/plain" {
		body.Src = string(data)
		return true
	}
	if err := json.Unmarshal(data, body); err != nil {
		writeJSON(w, http.StatusBadRequest, &Response{Error: fmt.Sprintf("decode body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("write response: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	sockPath := envOr("FORSP_SOCK", "/tmp/forsp.sock")
	addr := envOr("FORSP_HTTP_ADDR", ":8080")

	g := NewGateway(sockPath)
	defer g.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Printf("forsp http gateway listening on %s (core: %s)", addr, sockPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
}
