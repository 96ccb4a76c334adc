package wire

import (
	"net"
	"testing"
	"time"
)

func pipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return
}

func TestMySQLFramingRoundTrip(t *testing.T) {
	client, server := pipe(t)
	cs := NewStream(client, MySQL)
	ss := NewStream(server, MySQL)

	go func() {
		_ = cs.Send(0, []byte("select 1"))
	}()

	body, err := ss.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(body) != "select 1" {
		t.Fatalf("got %q", body)
	}
}

func TestMySQLSequenceIncrements(t *testing.T) {
	client, server := pipe(t)
	cs := NewStream(client, MySQL)
	ss := NewStream(server, MySQL)

	done := make(chan struct{})
	go func() {
		_ = cs.Send(0, []byte("a"))
		_ = cs.Send(0, []byte("b"))
		close(done)
	}()

	first, _ := ss.Receive()
	second, _ := ss.Receive()
	<-done
	if string(first) != "a" || string(second) != "b" {
		t.Fatalf("got %q, %q", first, second)
	}
}

func TestPostgresFramingRoundTrip(t *testing.T) {
	client, server := pipe(t)
	cs := NewStream(client, Postgres)
	ss := NewStream(server, Postgres)

	go func() {
		_ = cs.Send('Q', []byte("select 1;\x00"))
	}()

	body, err := ss.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	opcode, ok := ss.LastOpcode()
	if !ok || opcode != 'Q' {
		t.Fatalf("opcode = %v,%v want 'Q',true", opcode, ok)
	}
	if string(body) != "select 1;\x00" {
		t.Fatalf("got %q", body)
	}
}

func TestReceiveOnClosedSocketFails(t *testing.T) {
	client, server := pipe(t)
	ss := NewStream(server, MySQL)
	client.Close()

	_, err := ss.Receive()
	if err == nil {
		t.Fatal("expected error on closed peer")
	}
}

func TestBufferZeroTerminatedStringRoundTrip(t *testing.T) {
	w := NewWriteBuffer()
	w.WriteZeroTerminatedString("hello")
	w.WriteByte(0x42)

	r := NewBuffer(w.Bytes())
	s, err := r.ReadZeroTerminatedString()
	if err != nil {
		t.Fatalf("ReadZeroTerminatedString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q", s)
	}
	b, err := r.ReadByte()
	if err != nil || b != 0x42 {
		t.Fatalf("got %v,%v", b, err)
	}
}

func TestBufferUint24LERoundTrip(t *testing.T) {
	w := NewWriteBuffer()
	w.WriteUint24LE(0x010203)
	r := NewBuffer(w.Bytes())
	v, err := r.ReadUint24LE()
	if err != nil {
		t.Fatalf("ReadUint24LE: %v", err)
	}
	if v != 0x010203 {
		t.Fatalf("got %x", v)
	}
}

func TestStreamResetSequence(t *testing.T) {
	client, _ := pipe(t)
	cs := NewStream(client, MySQL)
	cs.sequence = 7
	cs.ResetSequence()
	if cs.sequence != 0 {
		t.Fatalf("sequence = %d, want 0", cs.sequence)
	}
}

func TestPostgresHasNoSequence(t *testing.T) {
	if Postgres.SequenceWidth != 0 {
		t.Fatal("postgres framing must not have a sequence counter")
	}
}

func init() {
	// Only references package time; no deadline is set on the pipes.
	_ = time.Second
}
