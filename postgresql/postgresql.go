// Package postgresql implements the PostgreSQL frontend/backend protocol
// v3: MD5-salted auth, simple and extended queries, typed column decoding
// and ReadyForQuery synchronization.
//
// The packet-cursor and connection-lifecycle shape (net.Dial, blocking
// recv/send, a ready flag) generalizes onto package wire's Framer instead
// of a bespoke packet type per backend.
package postgresql

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/wire"
)

// Opcodes used on the wire, named after the PostgreSQL message types they
// represent.
const (
	opAuthentication = 'R'
	opParameterStatus = 'S'
	opBackendKeyData  = 'K'
	opReadyForQuery   = 'Z'
	opRowDescription  = 'T'
	opDataRow         = 'D'
	opCommandComplete = 'C'
	opErrorResponse   = 'E'
	opNoticeResponse  = 'N'
	opQuery           = 'Q'
	opParse           = 'P'
	opParseComplete   = '1'
	opBind            = 'B'
	opBindComplete    = '2'
	opExecute         = 'E' // client Execute ('E' reused: direction disambiguates)
	opSync            = 'S' // client Sync ('S' reused)
	opFlush           = 'H'
	opPasswordMessage = 'p'
)

const tableInfoStatementName = "_shark_table_info"

const tableInfoSQL = `select column_name, data_type, is_nullable, character_maximum_length, column_default from INFORMATION_SCHEMA.COLUMNS where table_name=$1;`

// Config describes how to reach and authenticate against a PostgreSQL
// server.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func (c Config) address() string {
	if c.Port == 0 {
		return fmt.Sprintf("%s:5432", c.Host)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// State mirrors the connection lifecycle.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateQuerying
	StateClosed
)

// Connection is one PostgreSQL wire connection; not safe for concurrent
// use.
type Connection struct {
	cfg    Config
	stream *wire.Stream
	state  State
	error  bool

	Logger *log.Logger
}

// Connect dials addr, completes the v3 startup/auth flow and prepares the
// long-lived getTableInfo statement.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.address())
	if err != nil {
		return nil, dberr.WrapConnection("postgresql: dial failed", err)
	}

	c := &Connection{
		cfg:    cfg,
		stream: wire.NewStream(conn, wire.Postgres),
		state:  StateConnecting,
		Logger: log.Default(),
	}

	if err := c.startup(); err != nil {
		c.state = StateClosed
		conn.Close()
		return nil, err
	}
	if err := c.prepareTableInfoStatement(); err != nil {
		c.state = StateClosed
		conn.Close()
		return nil, err
	}

	c.state = StateReady
	return c, nil
}

// Close releases the underlying socket.
func (c *Connection) Close() error {
	c.state = StateClosed
	return c.stream.Close()
}

// State reports the current connection lifecycle state.
func (c *Connection) State() State {
	return c.state
}

// recv reads one opcode+body pair and transparently drains up to
// ReadyForQuery when the connection is in its error state, logging how
// many packets were discarded.
func (c *Connection) recv() (byte, []byte, error) {
	if c.error {
		discarded := 0
		for {
			opcode, _, err := c.recvRaw()
			if err != nil {
				return 0, nil, err
			}
			discarded++
			if opcode == opReadyForQuery {
				c.error = false
				c.Logger.Printf("postgresql: discarded %d stale packets resynchronizing to ReadyForQuery", discarded)
				break
			}
		}
	}
	return c.recvRaw()
}

func (c *Connection) recvRaw() (byte, []byte, error) {
	body, err := c.stream.Receive()
	if err != nil {
		return 0, nil, err
	}
	opcode, _ := c.stream.LastOpcode()

	if opcode == opNoticeResponse {
		fields := parseErrorFields(body)
		c.Logger.Printf("postgresql: NOTICE %s", fields)
		return c.recvRaw()
	}
	return opcode, body, nil
}

func (c *Connection) send(opcode byte, payload []byte) error {
	return c.stream.Send(opcode, payload)
}

// syncToReady reads packets until ReadyForQuery: every non-select mutation
// must consume the trailing CommandComplete then Z.
func (c *Connection) syncToReady() error {
	for {
		opcode, _, err := c.recvRaw()
		if err != nil {
			return err
		}
		if opcode == opReadyForQuery {
			c.error = false
			return nil
		}
	}
}

// raiseError converts an ErrorResponse body into one coded dberr per field
// (the field tag as code, its text as message), in packet order, aggregated
// into one ErrorCodesDatabaseError, and flips the connection into its
// draining state.
func (c *Connection) raiseError(body []byte) error {
	c.error = true
	buf := wire.NewBuffer(body)
	var errs []*dberr.ErrorCodeDatabaseError
	for {
		code, err := buf.ReadByte()
		if err != nil || code == 0x00 {
			break
		}
		value, err := buf.ReadZeroTerminatedString()
		if err != nil {
			break
		}
		errs = append(errs, dberr.NewErrorCode("postgresql", string(code), value))
	}
	return dberr.NewErrorCodes(errs...)
}

// parseErrorFields reads the repeated (code-byte, z-string) pairs of an
// ErrorResponse/NoticeResponse body, terminated by a 0x00.
func parseErrorFields(body []byte) map[string]string {
	buf := wire.NewBuffer(body)
	out := map[string]string{}
	for {
		code, err := buf.ReadByte()
		if err != nil || code == 0x00 {
			return out
		}
		value, err := buf.ReadZeroTerminatedString()
		if err != nil {
			return out
		}
		out[string(code)] = value
	}
}
