package latestwins

import "testing"

func TestTakeOnEmptyBufferReturnsFalse(t *testing.T) {
	var b Buffer[int]
	if _, ok := b.Take(); ok {
		t.Fatal("Take() on an empty buffer should return ok = false")
	}
}

func TestWriteThenTakeRoundTrips(t *testing.T) {
	var b Buffer[string]
	b.Write("frame-1")
	v, ok := b.Take()
	if !ok || v != "frame-1" {
		t.Fatalf("Take() = (%q, %v), want (frame-1, true)", v, ok)
	}
}

func TestWriteReplacesPendingUnreadValue(t *testing.T) {
	var b Buffer[int]
	b.Write(1)
	b.Write(2)
	v, ok := b.Take()
	if !ok || v != 2 {
		t.Fatalf("Take() = (%d, %v), want (2, true) — second write should replace the first", v, ok)
	}
	if _, ok := b.Take(); ok {
		t.Fatal("second Take() should return ok = false, only one value was ever pending")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	var b Buffer[int]
	if b.Peek() {
		t.Fatal("Peek() on empty buffer should be false")
	}
	b.Write(42)
	if !b.Peek() {
		t.Fatal("Peek() after Write() should be true")
	}
	if !b.Peek() {
		t.Fatal("Peek() should not consume the pending value")
	}
	v, ok := b.Take()
	if !ok || v != 42 {
		t.Fatalf("Take() = (%d, %v), want (42, true)", v, ok)
	}
	if b.Peek() {
		t.Fatal("Peek() after Take() should be false")
	}
}
