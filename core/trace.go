package forsp

// Trace captures the boundary points of a single service evaluation: the
// source that was run, the stack it left, and how it ended. Programs are
// deterministic apart from read and print, so the source plus the input
// is enough to reproduce a run.
type Trace struct {
	Entry     string   // program source
	Stack     []string // final stack, top first, printed
	Output    string   // text written by print
	Error     string   // non-empty on error
	Steps     int      // terms driven
	Timestamp string   // ISO 8601
}

// ToGo converts a Trace to a JSON-ready map for the traces op.
func (t *Trace) ToGo() map[string]any {
	stack := make([]any, len(t.Stack))
	for i, s := range t.Stack {
		stack[i] = s
	}
	m := map[string]any{
		"entry":     t.Entry,
		"stack":     stack,
		"steps":     t.Steps,
		"timestamp": t.Timestamp,
	}
	if t.Output != "" {
		m["output"] = t.Output
	}
	if t.Error != "" {
		m["error"] = t.Error
	} else {
		m["error"] = nil
	}
	return m
}
