package postgresql

import (
	"strconv"
	"strings"
	"time"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/types"
	"github.com/scorpion-framework/shark/wire"
)

// PostgreSQL type OIDs this backend decodes.
const (
	oidBool      = 16
	oidBytea     = 17
	oidInt8      = 20
	oidInt2      = 21
	oidInt4      = 23
	oidText      = 25
	oidFloat4    = 700
	oidFloat8    = 701
	oidChar      = 1042
	oidVarchar   = 1043
	oidDate      = 1082
	oidTime      = 1083
	oidTimestamp = 1114
)

type columnDescriptor struct {
	name string
	oid  uint32
}

// readRowDescription parses a 'T' RowDescription body: field count, then
// per field a z-string name, 6 skipped bytes, a 4-byte type OID, and 8
// skipped trailing bytes.
func readRowDescription(body []byte) ([]columnDescriptor, error) {
	buf := wire.NewBuffer(body)
	count, err := buf.ReadUint16(wire.BigEndian)
	if err != nil {
		return nil, dberr.WrapConnection("postgresql: malformed RowDescription", err)
	}

	cols := make([]columnDescriptor, count)
	for i := 0; i < int(count); i++ {
		name, err := buf.ReadZeroTerminatedString()
		if err != nil {
			return nil, dberr.WrapConnection("postgresql: malformed RowDescription field", err)
		}
		buf.Skip(6)
		oid, err := buf.ReadUint32(wire.BigEndian)
		if err != nil {
			return nil, dberr.WrapConnection("postgresql: malformed RowDescription field", err)
		}
		buf.Skip(8)
		cols[i] = columnDescriptor{name: name, oid: oid}
	}
	return cols, nil
}

// readDataRow parses a 'D' DataRow body into a bind.Row keyed by cols,
// decoding each text-format cell per its column's OID. A length of
// 0xFFFFFFFF marks a null value.
func readDataRow(body []byte, cols []columnDescriptor) (bind.Row, error) {
	buf := wire.NewBuffer(body)
	count, err := buf.ReadUint16(wire.BigEndian)
	if err != nil {
		return nil, dberr.WrapConnection("postgresql: malformed DataRow", err)
	}

	row := bind.Row{}
	for i := 0; i < int(count); i++ {
		length, err := buf.ReadUint32(wire.BigEndian)
		if err != nil {
			return nil, dberr.WrapConnection("postgresql: malformed DataRow cell", err)
		}
		col := cols[i]
		if length == 0xFFFFFFFF {
			row[col.name] = bind.Cell{IsNull: true}
			continue
		}
		raw, err := buf.ReadBytes(int(length))
		if err != nil {
			return nil, dberr.WrapConnection("postgresql: malformed DataRow cell", err)
		}
		value, err := decodeCell(col.oid, string(raw))
		if err != nil {
			return nil, err
		}
		row[col.name] = bind.Cell{Value: value}
	}
	return row, nil
}

func decodeCell(oid uint32, text string) (any, error) {
	switch oid {
	case oidBool:
		return text == "t", nil
	case oidBytea:
		return decodeBytea(text)
	case oidInt8:
		v, err := strconv.ParseInt(text, 10, 64)
		return v, wrapParse(err, text)
	case oidInt2:
		v, err := strconv.ParseInt(text, 10, 16)
		return int16(v), wrapParse(err, text)
	case oidInt4:
		v, err := strconv.ParseInt(text, 10, 32)
		return int32(v), wrapParse(err, text)
	case oidText:
		return text, nil
	case oidFloat4:
		v, err := strconv.ParseFloat(text, 32)
		return float32(v), wrapParse(err, text)
	case oidFloat8:
		v, err := strconv.ParseFloat(text, 64)
		return v, wrapParse(err, text)
	case oidChar, oidVarchar:
		return text, nil
	case oidDate:
		v, err := time.Parse("2006-01-02", text)
		return v, wrapParse(err, text)
	case oidTime:
		v, err := time.Parse("15:04:05", text)
		return v, wrapParse(err, text)
	case oidTimestamp:
		normalized := strings.Replace(text, " ", "T", 1)
		v, err := time.Parse(time.RFC3339, normalized+"Z")
		if err != nil {
			v, err = time.Parse("2006-01-02T15:04:05", normalized)
		}
		return v, wrapParse(err, text)
	default:
		return text, nil
	}
}

func wrapParse(err error, text string) error {
	if err == nil {
		return nil
	}
	return dberr.WrapTypeMismatch("postgresql: cannot decode %q", text)
}

// decodeBytea decodes the \xHEX textual bytea representation.
func decodeBytea(text string) ([]byte, error) {
	if !strings.HasPrefix(text, "\\x") {
		return []byte(text), nil
	}
	hexPart := text[2:]
	out := make([]byte, len(hexPart)/2)
	for i := 0; i < len(out); i++ {
		hi := hexDigit(hexPart[i*2])
		lo := hexDigit(hexPart[i*2+1])
		if hi < 0 || lo < 0 {
			return nil, dberr.WrapTypeMismatch("postgresql: malformed bytea %q", text)
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

func hexDigit(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}

// EscapeBinary renders data as PostgreSQL's '\xHEX' bytea literal, hex
// digits uppercase.
func (c *Connection) EscapeBinary(data []byte) string {
	var sb strings.Builder
	sb.WriteString("'\\x")
	const hexDigits = "0123456789ABCDEF"
	for _, b := range data {
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0xf])
	}
	sb.WriteByte('\'')
	return sb.String()
}

// RandomFunction is PostgreSQL's ORDER BY random() capability.
func (c *Connection) RandomFunction() string {
	return "random()"
}

// typeFlagForDataType maps a live column's reported data_type
// (INFORMATION_SCHEMA text, not OID — see GetTableInfo) onto the logical TypeFlag bitmask,
// honoring bytea's dual Binary|Blob role.
func typeFlagForDataType(dataType string) types.TypeFlag {
	switch dataType {
	case "boolean":
		return types.Bool
	case "smallint", "smallserial":
		return types.Short
	case "integer", "serial":
		return types.Int
	case "bigint", "bigserial":
		return types.Long
	case "real":
		return types.Float
	case "double precision":
		return types.Double
	case "character":
		return types.Char
	case "character varying":
		return types.String
	case "bytea":
		return types.Binary | types.Blob
	case "text":
		return types.Clob
	case "date":
		return types.Date
	case "timestamp without time zone", "timestamp with time zone":
		return types.DateTime
	case "time without time zone", "time with time zone":
		return types.Time
	default:
		return types.String
	}
}
