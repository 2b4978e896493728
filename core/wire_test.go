package forsp

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"
)

func TestWireRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for _, msg := range []map[string]any{
		{"id": "r1", "op": "eval", "src": "1 2 +"},
		{"id": "r2", "op": "list"},
	} {
		if err := WriteMsg(&buf, msg); err != nil {
			t.Fatal(err)
		}
	}

	first, err := ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if first["op"] != "eval" || first["src"] != "1 2 +" {
		t.Fatalf("unexpected first message %v", first)
	}
	second, err := ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if second["id"] != "r2" {
		t.Fatalf("unexpected second message %v", second)
	}
	if _, err := ReadMsg(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}

func TestWireLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMsg(&buf, map[string]any{"a": 1}); err != nil {
		t.Fatal(err)
	}
	n := binary.BigEndian.Uint32(buf.Bytes()[:4])
	if int(n) != buf.Len()-4 {
		t.Fatalf("prefix %d does not match body %d", n, buf.Len()-4)
	}
}

func TestWireRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(MaxMsgSize+1))
	if _, err := ReadMsg(&buf); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected too large error, got %v", err)
	}
}

func TestWireTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(10))
	buf.WriteString("{}")
	if _, err := ReadMsg(&buf); err == nil || err == io.EOF {
		t.Fatalf("expected read body error, got %v", err)
	}
}

func TestNextIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NextID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
