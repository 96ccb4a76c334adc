package dberr

import (
	"errors"
	"testing"
)

func TestErrorCodeRendering(t *testing.T) {
	err := NewErrorCode("severity", "23505", "duplicate key value violates unique constraint")
	want := "(severity-23505) duplicate key value violates unique constraint"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorCodesAggregate(t *testing.T) {
	agg := NewErrorCodes(
		NewErrorCode("S", "ERROR", "insert failed"),
		NewErrorCode("C", "23505", "duplicate key"),
	)
	want := "(S-ERROR) insert failed, (C-23505) duplicate key"
	if agg.Error() != want {
		t.Fatalf("got %q, want %q", agg.Error(), want)
	}
}

func TestWrongPacketSequence(t *testing.T) {
	err := NewWrongPacketSequence('Z', 'T')
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestIsConnection(t *testing.T) {
	wrapped := WrapConnection("handshake failed", errors.New("eof"))
	if !IsConnection(wrapped) {
		t.Fatal("expected IsConnection to be true")
	}
	if IsConnection(New("generic")) {
		t.Fatal("generic DatabaseError must not be a ConnectionError")
	}
}
