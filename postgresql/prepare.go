package postgresql

import (
	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/wire"
)

// prepareTableInfoStatement parses the long-lived getTableInfo query once at
// connect time under the name tableInfoStatementName, using a single
// varchar (OID 1043) parameter for the table name.
func (c *Connection) prepareTableInfoStatement() error {
	buf := wire.NewWriteBuffer()
	buf.WriteZeroTerminatedString(tableInfoStatementName)
	buf.WriteZeroTerminatedString(tableInfoSQL)
	buf.WriteUint16(1, wire.BigEndian)
	buf.WriteUint32(1043, wire.BigEndian)

	if err := c.send(opParse, buf.Bytes()); err != nil {
		return err
	}
	if err := c.send(opFlush, nil); err != nil {
		return err
	}

	opcode, body, err := c.recv()
	if err != nil {
		return err
	}
	if opcode == opErrorResponse {
		return c.raiseError(body)
	}
	if opcode != opParseComplete {
		return dberr.NewWrongPacketSequence(opParseComplete, opcode)
	}
	return nil
}

// execTableInfoStatement binds name to the prepared statement and consumes
// RowDescription/DataRow/CommandComplete through ReadyForQuery.
func (c *Connection) execTableInfoStatement(tableName string) (*columnResultSet, error) {
	bindBuf := wire.NewWriteBuffer()
	bindBuf.WriteZeroTerminatedString("")
	bindBuf.WriteZeroTerminatedString(tableInfoStatementName)
	bindBuf.WriteUint16(1, wire.BigEndian)
	bindBuf.WriteUint16(0, wire.BigEndian)
	bindBuf.WriteUint16(1, wire.BigEndian)
	bindBuf.WriteUint32(uint32(len(tableName)), wire.BigEndian)
	bindBuf.WriteBytes([]byte(tableName))
	bindBuf.WriteUint16(0, wire.BigEndian)

	if err := c.send(opBind, bindBuf.Bytes()); err != nil {
		return nil, err
	}

	execBuf := wire.NewWriteBuffer()
	execBuf.WriteZeroTerminatedString("")
	execBuf.WriteUint32(0, wire.BigEndian)
	if err := c.send(opExecute, execBuf.Bytes()); err != nil {
		return nil, err
	}
	if err := c.send(opSync, nil); err != nil {
		return nil, err
	}

	return c.consumeResultSet()
}

type columnResultSet struct {
	cols []columnDescriptor
	rows [][]byte
}

// consumeResultSet reads the extended-query response stream through
// ReadyForQuery: BindComplete, optional RowDescription, zero or more
// DataRow, CommandComplete, ReadyForQuery.
func (c *Connection) consumeResultSet() (*columnResultSet, error) {
	rs := &columnResultSet{}
	for {
		opcode, body, err := c.recv()
		if err != nil {
			return nil, err
		}
		switch opcode {
		case opBindComplete:
			continue
		case opRowDescription:
			cols, err := readRowDescription(body)
			if err != nil {
				return nil, err
			}
			rs.cols = cols
		case opDataRow:
			rs.rows = append(rs.rows, body)
		case opCommandComplete:
			continue
		case opErrorResponse:
			if rerr := c.raiseError(body); rerr != nil {
				if syncErr := c.syncToReady(); syncErr != nil {
					return nil, syncErr
				}
				return nil, rerr
			}
		case opReadyForQuery:
			return rs, nil
		default:
			return nil, dberr.NewWrongPacketSequence(opReadyForQuery, opcode)
		}
	}
}
