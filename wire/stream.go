// Package wire implements a length-prefixed packet reader/writer over a
// blocking net.Conn, shared by the PostgreSQL and MySQL backends and
// parameterized by their differing framing rules.
//
// The read/write cursor style generalizes the Packet type used for
// MariaDB framing, so one implementation serves both backends instead of
// duplicating it per backend.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/scorpion-framework/shark/dberr"
)

// Endian selects the byte order used for a framer's length (and sequence)
// fields.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// Framer describes one backend's packet framing: PostgreSQL frames with a
// leading opcode byte, a 4-byte big-endian length that includes itself and
// no sequence counter; MySQL frames with no opcode byte, a 3-byte
// little-endian length that excludes itself and a 1-byte sequence counter
// reset at the start of every command round-trip.
type Framer struct {
	IDLength             int
	Endian               Endian
	LengthFieldWidth     int
	LengthIncludesItself bool
	SequenceWidth        int
	SequenceEndian       Endian
}

// Postgres is the PostgreSQL v3 framing rule set.
var Postgres = Framer{
	IDLength:             1,
	Endian:               BigEndian,
	LengthFieldWidth:     4,
	LengthIncludesItself: true,
}

// MySQL is the MySQL/MariaDB v4.1+ framing rule set.
var MySQL = Framer{
	IDLength:             0,
	Endian:               LittleEndian,
	LengthFieldWidth:     3,
	LengthIncludesItself: false,
	SequenceWidth:        1,
	SequenceEndian:       LittleEndian,
}

// Stream owns the socket and the per-connection sequence counter for
// framers that have one.
type Stream struct {
	conn     net.Conn
	framer   Framer
	sequence uint32
	lastID   byte
	hasID    bool
}

// NewStream wraps conn using the given framing rules.
func NewStream(conn net.Conn, framer Framer) *Stream {
	return &Stream{conn: conn, framer: framer}
}

// ResetSequence restarts the per-command sequence counter at 0. MySQL does
// this at the start of every COM_* round-trip; PostgreSQL never calls it
// (SequenceWidth == 0 makes it a no-op there).
func (s *Stream) ResetSequence() {
	s.sequence = 0
}

// LastOpcode returns the leading opcode byte captured by the most recent
// Receive, valid only when the framer has IDLength == 1.
func (s *Stream) LastOpcode() (byte, bool) {
	return s.lastID, s.hasID
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return dberr.ErrConnectionClosed
	}
	if err != nil {
		return dberr.WrapConnection("short read", err)
	}
	return nil
}

func bytesToUint(b []byte, endian Endian) uint64 {
	padded := make([]byte, 8)
	if endian == BigEndian {
		copy(padded[8-len(b):], b)
		return binary.BigEndian.Uint64(padded)
	}
	copy(padded, b)
	return binary.LittleEndian.Uint64(padded)
}

func uintToBytes(v uint64, width int, endian Endian) []byte {
	buf := make([]byte, 8)
	if endian == BigEndian {
		binary.BigEndian.PutUint64(buf, v)
		return buf[8-width:]
	}
	binary.LittleEndian.PutUint64(buf, v)
	return buf[:width]
}

// Receive reads one complete frame: opcode byte (if configured), length
// field, sequence word (if configured) and body. It returns the raw body
// bytes (header and sequence stripped).
func (s *Stream) Receive() ([]byte, error) {
	s.hasID = false
	if s.framer.IDLength == 1 {
		idBuf := make([]byte, 1)
		if err := readFull(s.conn, idBuf); err != nil {
			return nil, err
		}
		s.lastID = idBuf[0]
		s.hasID = true
	}

	lenBuf := make([]byte, s.framer.LengthFieldWidth)
	if err := readFull(s.conn, lenBuf); err != nil {
		return nil, err
	}
	length := bytesToUint(lenBuf, s.framer.Endian)
	if s.framer.LengthIncludesItself {
		length -= uint64(s.framer.LengthFieldWidth)
	}

	if s.framer.SequenceWidth > 0 {
		seqBuf := make([]byte, s.framer.SequenceWidth)
		if err := readFull(s.conn, seqBuf); err != nil {
			return nil, err
		}
		s.sequence = uint32(bytesToUint(seqBuf, s.framer.SequenceEndian))
		if s.framer.LengthIncludesItself {
			length -= uint64(s.framer.SequenceWidth)
		}
	}

	body := make([]byte, length)
	if length > 0 {
		if err := readFull(s.conn, body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Send writes opcode (if configured), a freshly computed length, the
// post-incremented sequence (if configured) and payload.
func (s *Stream) Send(opcode byte, payload []byte) error {
	var buf bytes.Buffer

	if s.framer.IDLength == 1 {
		buf.WriteByte(opcode)
	}

	length := uint64(len(payload))
	if s.framer.LengthIncludesItself {
		length += uint64(s.framer.LengthFieldWidth)
		length += uint64(s.framer.SequenceWidth)
	}
	buf.Write(uintToBytes(length, s.framer.LengthFieldWidth, s.framer.Endian))

	if s.framer.SequenceWidth > 0 {
		buf.Write(uintToBytes(uint64(s.sequence), s.framer.SequenceWidth, s.framer.SequenceEndian))
		s.sequence++
	}

	buf.Write(payload)

	n, err := s.conn.Write(buf.Bytes())
	if err != nil {
		return dberr.WrapConnection("write failed", err)
	}
	if n != buf.Len() {
		return dberr.NewConnection("short write")
	}
	return nil
}

// Close releases the underlying socket.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// SendRaw writes payload directly to the socket, bypassing the framer.
// PostgreSQL's StartupMessage is the one message in either protocol sent
// before the framed convention applies (it carries its own self-contained
// length prefix and no opcode byte).
func (s *Stream) SendRaw(payload []byte) error {
	n, err := s.conn.Write(payload)
	if err != nil {
		return dberr.WrapConnection("raw write failed", err)
	}
	if n != len(payload) {
		return dberr.NewConnection("short raw write")
	}
	return nil
}

// Buffer is a read/write cursor over an in-memory payload, shared by both
// backend packet codecs for everything past framing: typed field
// encode/decode and the zero-terminated string helpers each wire format
// relies on.
type Buffer struct {
	buf []byte
	pos int
}

// NewBuffer wraps an existing payload for reading.
func NewBuffer(payload []byte) *Buffer {
	return &Buffer{buf: payload}
}

// NewWriteBuffer starts an empty payload for writing.
func NewWriteBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Bytes() []byte {
	return b.buf
}

func (b *Buffer) Len() int {
	return len(b.buf)
}

func (b *Buffer) Remaining() int {
	return len(b.buf) - b.pos
}

func (b *Buffer) Pos() int {
	return b.pos
}

func (b *Buffer) Skip(n int) {
	b.pos += n
}

func (b *Buffer) Peek() (byte, bool) {
	if b.pos >= len(b.buf) {
		return 0, false
	}
	return b.buf[b.pos], true
}

func (b *Buffer) ReadByte() (byte, error) {
	if b.pos >= len(b.buf) {
		return 0, fmt.Errorf("wire: read past end of buffer")
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if b.pos+n > len(b.buf) {
		return nil, fmt.Errorf("wire: read past end of buffer")
	}
	v := b.buf[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

func (b *Buffer) ReadRest() []byte {
	v := b.buf[b.pos:]
	b.pos = len(b.buf)
	return v
}

func (b *Buffer) ReadUint16(endian Endian) (uint16, error) {
	raw, err := b.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	if endian == BigEndian {
		return binary.BigEndian.Uint16(raw), nil
	}
	return binary.LittleEndian.Uint16(raw), nil
}

func (b *Buffer) ReadUint32(endian Endian) (uint32, error) {
	raw, err := b.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	if endian == BigEndian {
		return binary.BigEndian.Uint32(raw), nil
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (b *Buffer) ReadUint24LE() (uint32, error) {
	raw, err := b.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16, nil
}

func (b *Buffer) ReadUint64(endian Endian) (uint64, error) {
	raw, err := b.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	if endian == BigEndian {
		return binary.BigEndian.Uint64(raw), nil
	}
	return binary.LittleEndian.Uint64(raw), nil
}

// ReadZeroTerminatedString reads until a 0x00 sentinel and strips it. Both
// PostgreSQL and MySQL use this z-string encoding for names and messages.
func (b *Buffer) ReadZeroTerminatedString() (string, error) {
	idx := bytes.IndexByte(b.buf[b.pos:], 0x00)
	if idx < 0 {
		return "", fmt.Errorf("wire: unterminated string")
	}
	s := string(b.buf[b.pos : b.pos+idx])
	b.pos += idx + 1
	return s, nil
}

func (b *Buffer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *Buffer) WriteBytes(v []byte) {
	b.buf = append(b.buf, v...)
}

func (b *Buffer) WriteUint16(v uint16, endian Endian) {
	raw := make([]byte, 2)
	if endian == BigEndian {
		binary.BigEndian.PutUint16(raw, v)
	} else {
		binary.LittleEndian.PutUint16(raw, v)
	}
	b.buf = append(b.buf, raw...)
}

func (b *Buffer) WriteUint32(v uint32, endian Endian) {
	raw := make([]byte, 4)
	if endian == BigEndian {
		binary.BigEndian.PutUint32(raw, v)
	} else {
		binary.LittleEndian.PutUint32(raw, v)
	}
	b.buf = append(b.buf, raw...)
}

func (b *Buffer) WriteUint24LE(v uint32) {
	b.buf = append(b.buf, byte(v), byte(v>>8), byte(v>>16))
}

// WriteZeroTerminatedString writes bytes then a 0x00 sentinel.
func (b *Buffer) WriteZeroTerminatedString(s string) {
	b.buf = append(b.buf, []byte(s)...)
	b.buf = append(b.buf, 0x00)
}
