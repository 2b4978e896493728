package forsp

import (
	"reflect"
	"testing"
)

func TestValueString(t *testing.T) {
	for _, tc := range []struct {
		v    Value
		want string
	}{
		{Nil, "()"},
		{Intern("foo"), "foo"},
		{NumVal(-12), "-12"},
		{List(NumVal(1), NumVal(2)), "(1 2)"},
		{Cons(Intern("a"), Intern("b")), "(a . b)"},
		{Cons(NumVal(1), Cons(NumVal(2), NumVal(3))), "(1 2 . 3)"},
		{ClosureVal(List(Intern("x")), nil), "CLOSURE<(x)>"},
		{PrimVal("car", nil), "PRIM<car>"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestValueKindNumbers(t *testing.T) {
	// tag exposes these, so they must not move.
	want := map[ValueKind]int{ValNil: 0, ValAtom: 1, ValNum: 2, ValPair: 3, ValClosure: 4, ValPrim: 5}
	for k, n := range want {
		if int(k) != n {
			t.Fatalf("%s: expected %d, got %d", Value{Kind: k}.KindName(), n, int(k))
		}
	}
}

func TestEqualIdentity(t *testing.T) {
	l := List(NumVal(1))
	if !Equal(l, l) {
		t.Fatal("a pair should be eq to itself")
	}
	if Equal(l, List(NumVal(1))) {
		t.Fatal("distinct pairs should not be eq")
	}
	if !DeepEqual(l, List(NumVal(1))) {
		t.Fatal("equal lists should be DeepEqual")
	}
	if Equal(NumVal(1), Intern("1")) {
		t.Fatal("num and atom should differ")
	}
	if !Equal(Nil, List()) {
		t.Fatal("empty list is nil")
	}
	c := ClosureVal(Nil, nil)
	if Equal(c, ClosureVal(Nil, nil)) || !Equal(c, c) {
		t.Fatal("closures compare by identity")
	}
}

func TestListToSlice(t *testing.T) {
	elems, err := ListToSlice(List(NumVal(1), NumVal(2)))
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) != 2 || elems[1].Num != 2 {
		t.Fatalf("unexpected elems %v", elems)
	}
	if _, err := ListToSlice(Cons(NumVal(1), NumVal(2))); err == nil {
		t.Fatal("expected error for improper list")
	}
	if elems, err := ListToSlice(Nil); err != nil || len(elems) != 0 {
		t.Fatalf("expected empty slice, got %v %v", elems, err)
	}
}

func TestCarCdrErrors(t *testing.T) {
	if _, err := Car(NumVal(1)); err == nil {
		t.Fatal("expected car error")
	}
	if _, err := Cdr(Nil); err == nil {
		t.Fatal("expected cdr error")
	}
}

func TestValueToGo(t *testing.T) {
	v := List(NumVal(1), Intern("a"), List(), List(NumVal(2)))
	got := ValueToGo(v)
	want := []any{int64(1), "a", []any{}, []any{int64(2)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
	if got := ValueToGo(Cons(NumVal(1), NumVal(2))); got != "(1 . 2)" {
		t.Fatalf("improper list should print, got %#v", got)
	}
	if got := ValueToGo(ClosureVal(List(NumVal(1)), nil)); got != "CLOSURE<(1)>" {
		t.Fatalf("closure should print, got %#v", got)
	}
}
