package forsp

// Stack is a persistent LIFO of values backed by a cons list. The zero
// Stack is empty. Push and Pop return new stacks and leave the receiver
// untouched.
type Stack struct {
	items Value
	n     int
}

// StackFromSlice builds a stack whose top is vals[0].
func StackFromSlice(vals ...Value) Stack {
	var s Stack
	for i := len(vals) - 1; i >= 0; i-- {
		s = s.Push(vals[i])
	}
	return s
}

func (s Stack) Push(v Value) Stack {
	return Stack{items: Cons(v, s.items), n: s.n + 1}
}

func (s Stack) Pop() (Value, Stack, error) {
	if s.items.Kind != ValPair {
		return Value{}, s, ErrStackUnderflow
	}
	return s.items.Pair.Car, Stack{items: s.items.Pair.Cdr, n: s.n - 1}, nil
}

func (s Stack) Peek() (Value, bool) {
	if s.items.Kind != ValPair {
		return Value{}, false
	}
	return s.items.Pair.Car, true
}

func (s Stack) Len() int { return s.n }

// Slice returns the stack contents, top first.
func (s Stack) Slice() []Value {
	out := make([]Value, 0, s.n)
	for l := s.items; l.Kind == ValPair; l = l.Pair.Cdr {
		out = append(out, l.Pair.Car)
	}
	return out
}

// ToValue returns the stack as a list, top first.
func (s Stack) ToValue() Value { return s.items }

// Strings renders each element with the printer, top first.
func (s Stack) Strings() []string {
	vals := s.Slice()
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}
