package session

import (
	"strings"
	"testing"
)

func TestBufferAppendAndRead(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte("hello "))
	b.Append([]byte("world"))

	if got := b.String(); got != "hello world" {
		t.Errorf("String() = %q", got)
	}
	if got := b.Len(); got != 11 {
		t.Errorf("Len() = %d", got)
	}
	if got := b.ReadFrom(6); got != "world" {
		t.Errorf("ReadFrom(6) = %q", got)
	}
}

func TestBufferTrimsHeadAtCapacity(t *testing.T) {
	b := NewBuffer(10)
	b.Append([]byte("0123456789"))
	b.Append([]byte("abcde"))

	if got := b.String(); got != "56789abcde" {
		t.Errorf("String() = %q, want tail of stream", got)
	}
	if got := b.TrimmedTotal(); got != 5 {
		t.Errorf("TrimmedTotal() = %d, want 5", got)
	}
}

func TestBufferOversizedWriteKeepsTail(t *testing.T) {
	b := NewBuffer(4)
	b.Append([]byte(strings.Repeat("x", 3) + "TAIL"))

	if got := b.String(); got != "TAIL" {
		t.Errorf("String() = %q, want %q", got, "TAIL")
	}
	if got := b.TrimmedTotal(); got != 3 {
		t.Errorf("TrimmedTotal() = %d, want 3", got)
	}
}

func TestBufferReadFromClamps(t *testing.T) {
	b := NewBuffer(0)
	b.Append([]byte("abc"))

	if got := b.ReadFrom(-5); got != "abc" {
		t.Errorf("ReadFrom(-5) = %q", got)
	}
	if got := b.ReadFrom(99); got != "" {
		t.Errorf("ReadFrom(99) = %q", got)
	}
}

func TestBufferClearResetsCoordinates(t *testing.T) {
	b := NewBuffer(4)
	b.Append([]byte("abcdefgh"))
	if b.TrimmedTotal() == 0 {
		t.Fatal("expected trimming before clear")
	}

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Len() = %d after clear", b.Len())
	}
	if b.TrimmedTotal() != 0 {
		t.Errorf("TrimmedTotal() = %d after clear, want 0", b.TrimmedTotal())
	}
}
