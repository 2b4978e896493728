package forsp

import (
	"errors"
	"testing"
)

func TestStackPushPop(t *testing.T) {
	var s Stack
	s1 := s.Push(NumVal(1))
	s2 := s1.Push(NumVal(2))

	if s.Len() != 0 || s1.Len() != 1 || s2.Len() != 2 {
		t.Fatalf("unexpected lengths %d %d %d", s.Len(), s1.Len(), s2.Len())
	}

	v, rest, err := s2.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if v.Num != 2 || rest.Len() != 1 {
		t.Fatalf("expected 2 with one left, got %s and %d", v, rest.Len())
	}
	// Popping leaves the source stack untouched.
	if top, _ := s2.Peek(); top.Num != 2 {
		t.Fatalf("s2 changed: %s", top)
	}
}

func TestStackUnderflow(t *testing.T) {
	var s Stack
	if _, _, err := s.Pop(); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
	if _, ok := s.Peek(); ok {
		t.Fatal("empty stack has no top")
	}
}

func TestStackFromSlice(t *testing.T) {
	s := StackFromSlice(NumVal(1), NumVal(2), NumVal(3))
	got := s.Strings()
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Fatalf("expected top first [1 2 3], got %q", got)
	}
	if s.ToValue().String() != "(1 2 3)" {
		t.Fatalf("expected (1 2 3), got %s", s.ToValue())
	}
}
