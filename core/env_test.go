package forsp

import (
	"errors"
	"testing"
)

func TestEnvLookup(t *testing.T) {
	var env *Env
	if _, err := env.Lookup("x"); err == nil {
		t.Fatal("empty env should not bind x")
	}

	e1 := env.Extend("x", NumVal(1))
	e2 := e1.Extend("x", NumVal(2))
	if v, _ := e2.Lookup("x"); v.Num != 2 {
		t.Fatalf("expected shadowed x = 2, got %s", v)
	}
	// Extending never changes an existing chain.
	if v, _ := e1.Lookup("x"); v.Num != 1 {
		t.Fatalf("expected x = 1, got %s", v)
	}

	_, err := e2.Lookup("y")
	var nf *NameNotFoundError
	if !errors.As(err, &nf) || nf.Name != "y" {
		t.Fatalf("expected NameNotFoundError for y, got %v", err)
	}
	if err.Error() != "name not found: y" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestEnvNames(t *testing.T) {
	var env *Env
	env = env.Extend("a", Nil).Extend("b", Nil).Extend("a", Nil)
	names := env.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected [a b], got %q", names)
	}
}

func TestEnvToValue(t *testing.T) {
	var env *Env
	env = env.Extend("x", NumVal(1)).Extend("y", NumVal(2))
	if got := env.ToValue().String(); got != "((y . 2) (x . 1))" {
		t.Fatalf("unexpected alist %s", got)
	}
	if !(*Env)(nil).ToValue().IsNil() {
		t.Fatal("empty env should render as ()")
	}
}
