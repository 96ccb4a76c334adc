package postgresql

import (
	"fmt"
	"strings"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/entity"
	"github.com/scorpion-framework/shark/schema"
	"github.com/scorpion-framework/shark/types"
)

// GetTableInfo runs the prepared getTableInfo statement and reshapes its
// rows into the schema package's live-column map, or (nil, false, nil) when
// the target table does not exist.
func (c *Connection) GetTableInfo(tableName string) (map[string]schema.TableInfo, bool, error) {
	rs, err := c.execTableInfoStatement(tableName)
	if err != nil {
		return nil, false, err
	}
	if len(rs.rows) == 0 {
		return nil, false, nil
	}

	out := map[string]schema.TableInfo{}
	for _, body := range rs.rows {
		row, err := readDataRow(body, rs.cols)
		if err != nil {
			return nil, false, err
		}
		name, _ := row["column_name"].Value.(string)
		dataType, _ := row["data_type"].Value.(string)
		nullable := row["is_nullable"].Value == "YES"
		length := 0
		if cell, ok := row["character_maximum_length"]; ok && !cell.IsNull {
			if v, ok := cell.Value.(int32); ok {
				length = int(v)
			}
		}
		defaultValue := ""
		if cell, ok := row["column_default"]; ok && !cell.IsNull {
			defaultValue, _ = cell.Value.(string)
		}
		out[name] = schema.TableInfo{
			Name:         name,
			Type:         typeFlagForDataType(dataType),
			Length:       length,
			Nullable:     nullable,
			DefaultValue: defaultValue,
		}
	}
	return out, true, nil
}

// GenerateField renders one column definition for CREATE TABLE, per the
// type-rendering table.
func (c *Connection) GenerateField(field entity.FieldSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", field.Name, pgColumnType(field))
	if field.AutoIncrement {
		sb.Reset()
		fmt.Fprintf(&sb, "%s %s", field.Name, pgAutoIncrementType(field.Type))
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

func pgAutoIncrementType(flag types.TypeFlag) string {
	switch {
	case flag&types.Long != 0:
		return "bigserial"
	case flag&types.Short != 0:
		return "smallserial"
	default:
		return "serial"
	}
}

func pgColumnType(field entity.FieldSpec) string {
	flag := field.Type
	switch {
	case flag&types.Bool != 0:
		return "boolean"
	case flag&types.Byte != 0:
		return "smallint"
	case flag&types.Short != 0:
		return "smallint"
	case flag&types.Int != 0:
		return "integer"
	case flag&types.Long != 0:
		return "bigint"
	case flag&types.Float != 0:
		return "real"
	case flag&types.Double != 0:
		return "double precision"
	case flag&types.Clob != 0:
		return "text"
	case flag&(types.Binary|types.Blob) != 0:
		return "bytea"
	case flag&types.Char != 0:
		if field.Length > 0 {
			return fmt.Sprintf("character(%d)", field.Length)
		}
		return "character(1)"
	case flag&types.String != 0:
		if field.Length > 0 {
			return fmt.Sprintf("character varying(%d)", field.Length)
		}
		return "text"
	case flag&types.Date != 0:
		return "date"
	case flag&types.Time != 0:
		return "time"
	case flag&types.DateTime != 0:
		return "timestamp"
	default:
		return "text"
	}
}

// CreateTable issues `create table T (defs...)`.
func (c *Connection) CreateTable(tableName string, definitions []string) error {
	sql := fmt.Sprintf("create table %s (%s)", tableName, strings.Join(definitions, ", "))
	return c.Query(sql)
}

// AlterTableColumn issues the type and/or nullability ALTER statements a
// mismatched live column needs, one ALTER TABLE per changed aspect as
// PostgreSQL requires.
func (c *Connection) AlterTableColumn(tableName string, field entity.FieldSpec, typeChanged, nullableChanged bool) error {
	if typeChanged {
		sql := fmt.Sprintf("alter table %s alter column %s type %s", tableName, field.Name, pgColumnType(field))
		if err := c.Query(sql); err != nil {
			return err
		}
	}
	if nullableChanged {
		action := "set not null"
		if field.Nullable {
			action = "drop not null"
		}
		sql := fmt.Sprintf("alter table %s alter column %s %s", tableName, field.Name, action)
		if err := c.Query(sql); err != nil {
			return err
		}
	}
	return nil
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

// InsertInto issues `insert into T (n1,n2) values (v1,v2) [returning pk...]`
// and, when primaryKeys is non-empty, decodes the RETURNING row it asked for.
func (c *Connection) InsertInto(tableName string, names []string, values []string, primaryKeys []string) (*bind.Result, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "insert into %s (%s) values (%s)", tableName, strings.Join(names, ","), strings.Join(values, ","))
	if len(primaryKeys) > 0 {
		fmt.Fprintf(&sb, " returning %s", strings.Join(primaryKeys, ","))
	}

	if len(primaryKeys) == 0 {
		return nil, c.Query(sb.String())
	}
	return c.querySelectRaw(sb.String())
}

// Query runs sql as a simple query, discarding any result rows (used for
// DDL and non-RETURNING DML).
func (c *Connection) Query(sql string) error {
	_, err := c.runSimpleQuery(sql)
	return err
}

// QuerySelect runs sql as a simple query and returns its decoded rows.
func (c *Connection) QuerySelect(sql string) (*bind.Result, error) {
	return c.querySelectRaw(sql)
}

func (c *Connection) querySelectRaw(sql string) (*bind.Result, error) {
	rs, err := c.runSimpleQuery(sql)
	if err != nil {
		return nil, err
	}
	result := &bind.Result{}
	for _, col := range rs.cols {
		result.Columns = append(result.Columns, col.name)
	}
	for _, body := range rs.rows {
		row, err := readDataRow(body, rs.cols)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func (c *Connection) runSimpleQuery(sql string) (*columnResultSet, error) {
	buf := []byte(sql)
	buf = append(buf, 0x00)
	if err := c.send(opQuery, buf); err != nil {
		return nil, err
	}
	return c.consumeResultSet()
}
