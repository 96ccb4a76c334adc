package mysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/entity"
	"github.com/scorpion-framework/shark/schema"
	"github.com/scorpion-framework/shark/types"
)

// GetTableInfo runs DESCRIBE tableName and reshapes the result into the
// schema package's live-column map. A missing table surfaces as the
// server's "table doesn't exist" error code (1146), translated to
// (nil, false, nil) rather than propagated.
func (c *Connection) GetTableInfo(tableName string) (map[string]schema.TableInfo, bool, error) {
	result, err := c.runQuery(fmt.Sprintf("describe %s", tableName))
	if err != nil {
		var coded *dberr.ErrorCodeDatabaseError
		if errors.As(err, &coded) && coded.Code == "1146" {
			return nil, false, nil
		}
		return nil, false, err
	}
	if result == nil {
		return nil, false, nil
	}

	out := map[string]schema.TableInfo{}
	for _, row := range result.Rows {
		name, _ := row["Field"].Value.(string)
		rawType, _ := row["Type"].Value.(string)
		nullable := row["Null"].Value == "YES"
		defaultValue := ""
		if cell, ok := row["Default"]; ok && !cell.IsNull {
			defaultValue, _ = cell.Value.(string)
		}

		dataType, length := splitColumnType(rawType)
		out[name] = schema.TableInfo{
			Name:         name,
			Type:         typeFlagForColumnType(dataType),
			Length:       length,
			Nullable:     nullable,
			DefaultValue: defaultValue,
		}
	}
	return out, true, nil
}

// splitColumnType parses DESCRIBE's "varchar(255)" / "int(11) unsigned"
// style type strings into a bare type name and optional length.
func splitColumnType(raw string) (string, int) {
	name := raw
	length := 0
	if idx := strings.IndexByte(raw, '('); idx >= 0 {
		name = raw[:idx]
		if end := strings.IndexByte(raw[idx:], ')'); end >= 0 {
			if n, err := strconv.Atoi(raw[idx+1 : idx+end]); err == nil {
				length = n
			}
		}
	}
	if sp := strings.IndexByte(name, ' '); sp >= 0 {
		name = name[:sp]
	}
	return name, length
}

// GenerateField renders one column definition for CREATE TABLE.
func (c *Connection) GenerateField(field entity.FieldSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", field.Name, myColumnType(field))
	if field.AutoIncrement {
		sb.WriteString(" auto_increment")
	}
	if !field.Nullable {
		sb.WriteString(" not null")
	}
	if field.Unique {
		sb.WriteString(" unique")
	}
	if field.DefaultValue != "" {
		fmt.Fprintf(&sb, " default %s", field.DefaultValue)
	}
	return sb.String()
}

func myColumnType(field entity.FieldSpec) string {
	flag := field.Type
	switch {
	case flag&types.Bool != 0:
		return "tinyint(1)"
	case flag&types.Byte != 0:
		return "tinyint"
	case flag&types.Short != 0:
		return "smallint"
	case flag&types.Int != 0:
		return "int"
	case flag&types.Long != 0:
		return "bigint"
	case flag&types.Float != 0:
		return "float"
	case flag&types.Double != 0:
		return "double"
	case flag&types.Clob != 0:
		return "text"
	case flag&(types.Binary|types.Blob) != 0:
		return "blob"
	case flag&types.Char != 0:
		if field.Length > 0 {
			return fmt.Sprintf("char(%d)", field.Length)
		}
		return "char(1)"
	case flag&types.String != 0:
		if field.Length > 0 {
			return fmt.Sprintf("varchar(%d)", field.Length)
		}
		return "varchar(255)"
	case flag&types.Date != 0:
		return "date"
	case flag&types.Time != 0:
		return "time"
	case flag&types.DateTime != 0:
		return "datetime"
	default:
		return "text"
	}
}

// CreateTable issues `create table T (defs...)`.
func (c *Connection) CreateTable(tableName string, definitions []string) error {
	sql := fmt.Sprintf("create table %s (%s)", tableName, strings.Join(definitions, ", "))
	return c.Query(sql)
}

// AlterTableColumn issues `alter table T modify column <def>` — MySQL
// expresses both a type change and a nullability change as one MODIFY,
// unlike PostgreSQL's two separate ALTERs.
func (c *Connection) AlterTableColumn(tableName string, field entity.FieldSpec, typeChanged, nullableChanged bool) error {
	sql := fmt.Sprintf("alter table %s modify column %s", tableName, c.GenerateField(field))
	return c.Query(sql)
}

// AlterTableAddColumn issues `alter table T add column <def>`.
func (c *Connection) AlterTableAddColumn(tableName string, field entity.FieldSpec) error {
	sql := fmt.Sprintf("alter table %s add column %s", tableName, c.GenerateField(field))
	return c.Query(sql)
}

// AlterTableDropColumn issues `alter table T drop column C`.
func (c *Connection) AlterTableDropColumn(tableName string, columnName string) error {
	sql := fmt.Sprintf("alter table %s drop column %s", tableName, columnName)
	return c.Query(sql)
}

// DropTable issues `drop table T`.
func (c *Connection) DropTable(tableName string) error {
	return c.Query(fmt.Sprintf("drop table %s", tableName))
}

// InsertInto issues `insert into T (n1,n2) values (v1,v2)`. MySQL has no
// RETURNING clause; when primaryKeys is non-empty this reads back
// LAST_INSERT_ID() via the OK packet's affected-id field instead.
func (c *Connection) InsertInto(tableName string, names []string, values []string, primaryKeys []string) (*bind.Result, error) {
	sql := fmt.Sprintf("insert into %s (%s) values (%s)", tableName, strings.Join(names, ","), strings.Join(values, ","))
	if _, err := c.runQuery(sql); err != nil {
		return nil, err
	}
	if len(primaryKeys) == 0 || c.lastInsertID == 0 {
		return nil, nil
	}
	return &bind.Result{
		Columns: primaryKeys[:1],
		Rows:    []bind.Row{{primaryKeys[0]: {Value: c.lastInsertID}}},
	}, nil
}

// Query runs sql, discarding any result rows.
func (c *Connection) Query(sql string) error {
	_, err := c.runQuery(sql)
	return err
}

// QuerySelect runs sql and returns its decoded rows.
func (c *Connection) QuerySelect(sql string) (*bind.Result, error) {
	result, err := c.runQuery(sql)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &bind.Result{}, nil
	}
	return result, nil
}
