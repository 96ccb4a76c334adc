package mysql

import (
	"fmt"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/wire"
)

const (
	packetTypeOK  = 0x00
	packetTypeEOF = 0xfe
	packetTypeERR = 0xff
)

// MySQL column field types this backend decodes.
const (
	fieldTypeTiny      = 1
	fieldTypeShort     = 2
	fieldTypeLong      = 3
	fieldTypeFloat     = 4
	fieldTypeDouble    = 5
	fieldTypeNull      = 6
	fieldTypeTimestamp = 7
	fieldTypeLongLong  = 8
	fieldTypeInt24     = 9
	fieldTypeDate      = 10
	fieldTypeTime      = 11
	fieldTypeDatetime  = 12
	fieldTypeYear      = 13
	fieldTypeVarchar   = 15
	fieldTypeBit       = 16
	fieldTypeJSON      = 245
	fieldTypeNewDecimal = 246
	fieldTypeBlob       = 252
	fieldTypeVarString  = 253
	fieldTypeString     = 254
)

type columnDef struct {
	name string
	kind uint8
}

func readLengthEncodedInt(buf *wire.Buffer) (uint64, error) {
	first, err := buf.ReadByte()
	if err != nil {
		return 0, err
	}
	switch first {
	case 0xfb:
		return 0, nil
	case 0xfc:
		v, err := buf.ReadUint16(wire.LittleEndian)
		return uint64(v), err
	case 0xfd:
		v, err := buf.ReadUint24LE()
		return uint64(v), err
	case 0xfe:
		return buf.ReadUint64(wire.LittleEndian)
	default:
		return uint64(first), nil
	}
}

// readLengthEncodedString reads a length-encoded string, reporting isNull
// when the length byte was the 0xfb null marker.
func readLengthEncodedString(buf *wire.Buffer) (string, bool, error) {
	peek, ok := buf.Peek()
	if ok && peek == 0xfb {
		buf.Skip(1)
		return "", true, nil
	}
	length, err := readLengthEncodedInt(buf)
	if err != nil {
		return "", false, err
	}
	raw, err := buf.ReadBytes(int(length))
	if err != nil {
		return "", false, err
	}
	return string(raw), false, nil
}

func parseErrPacket(body []byte) error {
	buf := wire.NewBuffer(body)
	buf.Skip(1)
	code, _ := buf.ReadUint16(wire.LittleEndian)
	rest := buf.ReadRest()
	message := string(rest)
	if len(rest) > 0 && rest[0] == '#' {
		if len(rest) >= 6 {
			message = string(rest[6:])
		}
	}
	return dberr.NewErrorCode("mysql", fmt.Sprintf("%d", code), message)
}

// readOKPacket parses an OK packet's affected-rows and last-insert-id
// fields.
func readOKPacket(body []byte) (lastInsertID int64, err error) {
	buf := wire.NewBuffer(body)
	buf.Skip(1)
	if _, err := readLengthEncodedInt(buf); err != nil {
		return 0, err
	}
	id, err := readLengthEncodedInt(buf)
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}

// runQuery sends one COM_QUERY and classifies the response: an OK packet
// (DDL/DML, no rows), an ERR packet, or a text result set.
func (c *Connection) runQuery(sql string) (*bind.Result, error) {
	c.stream.ResetSequence()
	payload := append([]byte{comQuery}, []byte(sql)...)
	if err := c.send(payload); err != nil {
		return nil, err
	}

	body, err := c.recv()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, dberr.NewConnection("mysql: empty query response")
	}

	switch body[0] {
	case packetTypeOK:
		id, err := readOKPacket(body)
		if err != nil {
			return nil, err
		}
		c.lastInsertID = id
		return nil, nil
	case packetTypeERR:
		return nil, parseErrPacket(body)
	default:
		return c.readTextResultSet(body)
	}
}

// readTextResultSet consumes a text protocol result set starting from the
// already-read column-count packet: N column-definition packets terminated
// by EOF, then row packets terminated by EOF.
func (c *Connection) readTextResultSet(columnCountBody []byte) (*bind.Result, error) {
	columnCountBuf := wire.NewBuffer(columnCountBody)
	columnCount, err := readLengthEncodedInt(columnCountBuf)
	if err != nil {
		return nil, err
	}

	cols := make([]columnDef, 0, columnCount)
	for i := uint64(0); i < columnCount; i++ {
		body, err := c.recv()
		if err != nil {
			return nil, err
		}
		col, err := parseColumnDefinition(body)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	if columnCount > 0 {
		if _, err := c.recv(); err != nil { // trailing EOF after column definitions
			return nil, err
		}
	}

	result := &bind.Result{}
	for _, col := range cols {
		result.Columns = append(result.Columns, col.name)
	}

	for {
		body, err := c.recv()
		if err != nil {
			return nil, err
		}
		if len(body) > 0 && (body[0] == packetTypeEOF || body[0] == packetTypeERR) {
			if body[0] == packetTypeERR {
				return nil, parseErrPacket(body)
			}
			break
		}
		row, err := parseTextRow(body, cols)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func parseColumnDefinition(body []byte) (columnDef, error) {
	buf := wire.NewBuffer(body)
	if _, _, err := readLengthEncodedString(buf); err != nil { // catalog
		return columnDef{}, err
	}
	if _, _, err := readLengthEncodedString(buf); err != nil { // schema
		return columnDef{}, err
	}
	if _, _, err := readLengthEncodedString(buf); err != nil { // table alias
		return columnDef{}, err
	}
	if _, _, err := readLengthEncodedString(buf); err != nil { // table
		return columnDef{}, err
	}
	name, _, err := readLengthEncodedString(buf) // column alias
	if err != nil {
		return columnDef{}, err
	}
	if _, _, err := readLengthEncodedString(buf); err != nil { // column
		return columnDef{}, err
	}
	if _, err := readLengthEncodedInt(buf); err != nil { // length of fixed fields, always 0x0c
		return columnDef{}, err
	}
	buf.Skip(2) // character set
	buf.Skip(4) // column length
	kind, err := buf.ReadByte()
	if err != nil {
		return columnDef{}, err
	}
	return columnDef{name: name, kind: kind}, nil
}

func parseTextRow(body []byte, cols []columnDef) (bind.Row, error) {
	buf := wire.NewBuffer(body)
	row := bind.Row{}
	for _, col := range cols {
		text, isNull, err := readLengthEncodedString(buf)
		if err != nil {
			return nil, err
		}
		if isNull {
			row[col.name] = bind.Cell{IsNull: true}
			continue
		}
		value, err := decodeColumnText(col.kind, text)
		if err != nil {
			return nil, err
		}
		row[col.name] = bind.Cell{Value: value}
	}
	return row, nil
}
