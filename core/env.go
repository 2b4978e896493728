package forsp

// Env is one frame of a persistent binding chain. A nil *Env is the empty
// environment. Frames are never mutated after creation, so a closure can
// hold on to any chain head safely.
type Env struct {
	name  string
	value Value
	next  *Env
}

// Extend returns a new chain with name bound to v in front of e.
func (e *Env) Extend(name string, v Value) *Env {
	return &Env{name: name, value: v, next: e}
}

// Lookup returns the most recent binding of name.
func (e *Env) Lookup(name string) (Value, error) {
	for f := e; f != nil; f = f.next {
		if f.name == name {
			return f.value, nil
		}
	}
	return Value{}, &NameNotFoundError{Name: name}
}

// Names returns the visible names, most recently bound first.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for f := e; f != nil; f = f.next {
		if seen[f.name] {
			continue
		}
		seen[f.name] = true
		names = append(names, f.name)
	}
	return names
}

// ToValue renders the chain as an association list of (name . value)
// pairs, head first. Shadowed frames are included.
func (e *Env) ToValue() Value {
	var frames []Value
	for f := e; f != nil; f = f.next {
		frames = append(frames, Cons(Intern(f.name), f.value))
	}
	return List(frames...)
}
