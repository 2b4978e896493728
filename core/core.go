package forsp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

// Options tune the evaluation limits of a Core.
type Options struct {
	MaxDepth  int // nested closure calls; 0 uses DefaultMaxDepth
	MaxSteps  int // terms per request; 0 means unlimited
	MaxTraces int // traces kept in memory; 0 uses 1000
}

// Core is the central actor that owns the session and handles requests.
type Core struct {
	session   *Session
	store     *Store
	requests  chan coreRequest
	listener  net.Listener
	traces    []Trace
	maxTraces int
}

type coreRequest struct {
	msg      map[string]any
	response chan map[string]any
}

const defaultStepLimit = 100

// NewCore opens the store at dbPath, replays the session, and listens on
// the unix socket at sockPath.
func NewCore(dbPath, sockPath string, opts Options) (*Core, error) {
	// Clean up a stale socket
	os.Remove(sockPath)

	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	c, err := newCore(store, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		c.session.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}
	c.listener = listener
	return c, nil
}

func newCore(store *Store, opts Options) (*Core, error) {
	interp := NewInterpreter()
	if opts.MaxDepth > 0 {
		interp.MaxDepth = opts.MaxDepth
	}
	interp.MaxSteps = opts.MaxSteps
	if opts.MaxTraces <= 0 {
		opts.MaxTraces = 1000
	}

	session, err := NewSession(interp, NewConsole(nil, io.Discard), store)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	return &Core{
		session:   session,
		store:     store,
		requests:  make(chan coreRequest, 64),
		maxTraces: opts.MaxTraces,
	}, nil
}

// Run starts the actor goroutine and accepts connections. Blocks until
// the listener is closed.
func (c *Core) Run() {
	go c.actorLoop()
	c.acceptClients()
}

func (c *Core) acceptClients() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.handleClientConnection(conn)
	}
}

// Shutdown cleanly stops the core.
func (c *Core) Shutdown() {
	if c.listener != nil {
		c.listener.Close()
	}
	close(c.requests)
	if err := c.session.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}

// actorLoop is the single goroutine that owns session state.
func (c *Core) actorLoop() {
	for req := range c.requests {
		req.response <- c.handleRequest(req.msg)
	}
}

// sendToActor sends a request to the core actor and waits for the response.
func (c *Core) sendToActor(msg map[string]any) map[string]any {
	resp := make(chan map[string]any, 1)
	c.requests <- coreRequest{msg: msg, response: resp}
	return <-resp
}

func (c *Core) handleRequest(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)

	op, _ := msg["op"].(string)
	if op == "" {
		return c.coreManual(id)
	}

	switch op {
	case "eval":
		return c.handleEval(id, msg)
	case "define":
		return c.handleDefine(id, msg)
	case "delete":
		return c.handleDelete(id, msg)
	case "list":
		return c.handleList(id)
	case "step":
		return c.handleStep(id, msg)
	case "traces":
		return c.handleTraces(id, msg)
	case "clear":
		return c.handleClear(id)
	default:
		return errorResponse(id, fmt.Sprintf("unknown op: %s", op))
	}
}

func (c *Core) coreManual(id string) map[string]any {
	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"name":    "forsp-core",
			"version": "1.0.0",
			"ops": map[string]any{
				"eval":   "Run a program from an empty stack. Params: src (string), input (string, optional, consumed by read)",
				"define": "Bind the top of a program's result stack to a name. Params: name (string), src (string)",
				"delete": "Delete a definition. Params: name (string)",
				"list":   "List definitions and their source.",
				"step":   "Run a program one term at a time and return each step. Params: src (string), max_steps (int, optional)",
				"traces": "Recent evaluations. Params: n (int, optional)",
				"clear":  "Drop all definitions and traces.",
			},
			"forms":      []any{QuoteAtom, ReadAtom, BindAtom},
			"primitives": primitiveNames(c.session.prims),
		},
	}
}

// withConsole points read at input and captures print for one request.
func (c *Core) withConsole(input string) *bytes.Buffer {
	var out bytes.Buffer
	c.session.Console.In = NewReader(strings.NewReader(input))
	c.session.Console.Out = &out
	return &out
}

func (c *Core) handleEval(id string, msg map[string]any) map[string]any {
	src, ok := msg["src"].(string)
	if !ok {
		return errorResponse(id, "eval: missing 'src' string")
	}
	input, _ := msg["input"].(string)
	out := c.withConsole(input)

	trace := &Trace{
		Entry:     src,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	stack, err := c.session.Eval(src)
	var syntaxErr *SyntaxError
	if !errors.As(err, &syntaxErr) {
		trace.Steps = c.session.Interpreter().Steps()
	}
	trace.Output = out.String()
	trace.Stack = stack.Strings()

	if err != nil {
		trace.Error = err.Error()
		c.appendTrace(trace)
		return errorResponse(id, err.Error())
	}
	c.appendTrace(trace)

	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"stack":  stackToGo(stack),
			"output": out.String(),
		},
	}
}

func (c *Core) handleDefine(id string, msg map[string]any) map[string]any {
	name, ok := msg["name"].(string)
	if !ok {
		return errorResponse(id, "define: missing 'name' string")
	}
	src, ok := msg["src"].(string)
	if !ok {
		return errorResponse(id, "define: missing 'src' string")
	}
	c.withConsole("")
	v, err := c.session.Define(name, src)
	if err != nil {
		return errorResponse(id, err.Error())
	}
	return map[string]any{
		"id":    id,
		"ok":    true,
		"value": map[string]any{"name": name, "value": v.String()},
	}
}

func (c *Core) handleDelete(id string, msg map[string]any) map[string]any {
	name, ok := msg["name"].(string)
	if !ok {
		return errorResponse(id, "delete: missing 'name' string")
	}
	if err := c.session.Delete(name); err != nil {
		return errorResponse(id, err.Error())
	}
	return map[string]any{"id": id, "ok": true, "value": name}
}

func (c *Core) handleList(id string) map[string]any {
	names := c.session.Names()
	defs := make([]any, len(names))
	for i, name := range names {
		src, _ := c.session.Source(name)
		defs[i] = map[string]any{"name": name, "src": src}
	}
	return map[string]any{"id": id, "ok": true, "value": defs}
}

func (c *Core) handleStep(id string, msg map[string]any) map[string]any {
	src, ok := msg["src"].(string)
	if !ok {
		return errorResponse(id, "step: missing 'src' string")
	}
	limit := defaultStepLimit
	if n, ok := msg["max_steps"].(float64); ok && n > 0 {
		limit = int(n)
	}
	input, _ := msg["input"].(string)
	c.withConsole(input)

	st, err := c.session.Step(src)
	if err != nil {
		return errorResponse(id, err.Error())
	}
	records, stepErr := st.TraceSteps(limit)

	steps := make([]any, len(records))
	for i, r := range records {
		stack := make([]any, len(r.Stack))
		for j, s := range r.Stack {
			stack[j] = s
		}
		steps[i] = map[string]any{"term": r.Term, "stack": stack, "depth": r.Depth}
	}
	value := map[string]any{
		"steps": steps,
		"done":  st.Done() && stepErr == nil,
		"stack": stackToGo(st.Stack()),
	}
	if stepErr != nil {
		value["error"] = stepErr.Error()
	}
	return map[string]any{"id": id, "ok": true, "value": value}
}

func (c *Core) handleTraces(id string, msg map[string]any) map[string]any {
	n := c.maxTraces
	if v, ok := msg["n"].(float64); ok && v > 0 && int(v) < n {
		n = int(v)
	}

	var traces []Trace
	if c.store != nil {
		var err error
		traces, err = c.store.RecentTraces(n)
		if err != nil {
			return errorResponse(id, err.Error())
		}
	} else {
		if n > len(c.traces) {
			n = len(c.traces)
		}
		traces = c.traces[len(c.traces)-n:]
	}

	result := make([]any, len(traces))
	for i := range traces {
		result[i] = traces[i].ToGo()
	}
	return map[string]any{"id": id, "ok": true, "value": result}
}

func (c *Core) handleClear(id string) map[string]any {
	if err := c.session.Clear(); err != nil {
		return errorResponse(id, err.Error())
	}
	c.traces = nil
	return map[string]any{"id": id, "ok": true, "value": "cleared"}
}

func errorResponse(id, errMsg string) map[string]any {
	return map[string]any{"id": id, "ok": false, "error": errMsg}
}

func stackToGo(s Stack) []any {
	vals := s.Slice()
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = ValueToGo(v)
	}
	return out
}

func primitiveNames(table map[string]PrimFunc) []any {
	env := BaseEnv(table)
	names := env.Names()
	out := make([]any, len(names))
	for i := range names {
		// BaseEnv binds in name order, so Names comes back reversed.
		out[i] = names[len(names)-1-i]
	}
	return out
}

// --- Connection handling ---

func (c *Core) handleClientConnection(conn net.Conn) {
	defer conn.Close()

	for {
		msg, err := ReadMsg(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("read client message: %v", err)
			}
			return
		}

		resp := c.sendToActor(msg)
		if err := WriteMsg(conn, resp); err != nil {
			log.Printf("write client response: %v", err)
			return
		}
	}
}

// appendTrace records a trace, persists it, and enforces the maxTraces cap.
func (c *Core) appendTrace(t *Trace) {
	c.traces = append(c.traces, *t)
	if len(c.traces) > c.maxTraces {
		// Drop oldest traces
		excess := len(c.traces) - c.maxTraces
		c.traces = c.traces[excess:]
	}
	if c.store != nil {
		if err := c.store.AppendTrace(t); err != nil {
			log.Printf("persist trace: %v", err)
		}
	}
}
