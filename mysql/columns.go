package mysql

import (
	"strconv"
	"strings"
	"time"

	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/types"
)

func decodeColumnText(kind uint8, text string) (any, error) {
	switch kind {
	case fieldTypeTiny, fieldTypeShort, fieldTypeLong, fieldTypeInt24, fieldTypeLongLong, fieldTypeYear:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode integer %q", text)
		}
		return v, nil
	case fieldTypeFloat:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode float %q", text)
		}
		return float32(v), nil
	case fieldTypeDouble, fieldTypeNewDecimal:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode float %q", text)
		}
		return v, nil
	case fieldTypeBlob, fieldTypeBit:
		return []byte(text), nil
	case fieldTypeDate:
		v, err := time.Parse("2006-01-02", text)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode date %q", text)
		}
		return v, nil
	case fieldTypeTime:
		v, err := time.Parse("15:04:05", text)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode time %q", text)
		}
		return v, nil
	case fieldTypeDatetime, fieldTypeTimestamp:
		v, err := time.Parse("2006-01-02 15:04:05", text)
		if err != nil {
			return nil, dberr.WrapTypeMismatch("mysql: cannot decode datetime %q", text)
		}
		return v, nil
	case fieldTypeVarchar, fieldTypeVarString, fieldTypeString, fieldTypeJSON, fieldTypeNull:
		return text, nil
	default:
		return text, nil
	}
}

// EscapeBinary renders data as MySQL's 0xHEX numeric literal, hex digits
// uppercase.
func (c *Connection) EscapeBinary(data []byte) string {
	const hexDigits = "0123456789ABCDEF"
	var sb strings.Builder
	sb.WriteString("0x")
	for _, b := range data {
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0xf])
	}
	return sb.String()
}

// RandomFunction is MySQL/MariaDB's ORDER BY RAND() capability.
func (c *Connection) RandomFunction() string {
	return "RAND()"
}

// typeFlagForColumnType maps the INFORMATION_SCHEMA DATA_TYPE string
// DESCRIBE reports onto the logical TypeFlag bitmask.
func typeFlagForColumnType(dataType string) types.TypeFlag {
	switch dataType {
	case "tinyint":
		return types.Byte
	case "smallint":
		return types.Short
	case "int", "mediumint":
		return types.Int
	case "bigint":
		return types.Long
	case "float":
		return types.Float
	case "double":
		return types.Double
	case "char":
		return types.Char
	case "varchar":
		return types.String
	case "text", "mediumtext", "longtext", "tinytext":
		return types.Clob
	case "blob", "mediumblob", "longblob", "tinyblob", "varbinary", "binary":
		return types.Binary | types.Blob
	case "date":
		return types.Date
	case "datetime", "timestamp":
		return types.DateTime
	case "time":
		return types.Time
	default:
		return types.String
	}
}
