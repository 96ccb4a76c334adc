package postgresql

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/wire"
)

const protocolVersion = 0x00030000

const (
	authOK            = 0
	authCleartext     = 3
	authMD5           = 5
)

// startup sends StartupMessage and drives the auth handshake through to
// ReadyForQuery.
func (c *Connection) startup() error {
	msg := wire.NewWriteBuffer()
	msg.WriteUint32(protocolVersion, wire.BigEndian)
	msg.WriteZeroTerminatedString("user")
	msg.WriteZeroTerminatedString(c.cfg.Username)
	msg.WriteZeroTerminatedString("database")
	msg.WriteZeroTerminatedString(c.cfg.Database)
	msg.WriteByte(0x00)

	length := uint32(msg.Len() + 4)
	full := wire.NewWriteBuffer()
	full.WriteUint32(length, wire.BigEndian)
	full.WriteBytes(msg.Bytes())

	if err := rawSend(c, full.Bytes()); err != nil {
		return err
	}

	c.state = StateAuthenticating
	return c.authenticate()
}

func (c *Connection) authenticate() error {
	opcode, body, err := c.recvRaw()
	if err != nil {
		return dberr.WrapConnection("postgresql: startup failed", err)
	}
	if opcode != opAuthentication {
		return dberr.NewWrongPacketSequence(opAuthentication, opcode)
	}

	buf := wire.NewBuffer(body)
	method, _ := buf.ReadUint32(wire.BigEndian)

	switch method {
	case authOK:
		return c.drainUntilReady()
	case authCleartext:
		if err := c.sendPasswordMessage(c.cfg.Password); err != nil {
			return err
		}
	case authMD5:
		salt, err := buf.ReadBytes(4)
		if err != nil {
			return dberr.WrapConnection("postgresql: malformed MD5 auth request", err)
		}
		if err := c.sendPasswordMessage(md5Password(c.cfg.Username, c.cfg.Password, salt)); err != nil {
			return err
		}
	default:
		return dberr.NewConnection("postgresql: unsupported authentication method")
	}

	opcode, body, err = c.recvRaw()
	if err != nil {
		return err
	}
	if opcode != opAuthentication {
		return dberr.NewWrongPacketSequence(opAuthentication, opcode)
	}
	buf = wire.NewBuffer(body)
	method, _ = buf.ReadUint32(wire.BigEndian)
	if method != authOK {
		return dberr.NewConnection("postgresql: authentication rejected")
	}
	return c.drainUntilReady()
}

// drainUntilReady consumes ParameterStatus/BackendKeyData packets until
// ReadyForQuery.
func (c *Connection) drainUntilReady() error {
	for {
		opcode, body, err := c.recvRaw()
		if err != nil {
			return err
		}
		switch opcode {
		case opParameterStatus, opBackendKeyData:
			continue
		case opReadyForQuery:
			return nil
		case opErrorResponse:
			return c.raiseError(body)
		default:
			return dberr.NewWrongPacketSequence(opReadyForQuery, opcode)
		}
	}
}

func (c *Connection) sendPasswordMessage(password string) error {
	buf := wire.NewWriteBuffer()
	buf.WriteZeroTerminatedString(password)
	return c.send(opPasswordMessage, buf.Bytes())
}

// md5Password implements PostgreSQL's MD5-salted scheme:
// "md5" + hex(md5(hex(md5(password+user)) + salt)), lowercase hex.
func md5Password(user, password string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum(append([]byte(innerHex), salt...))
	return "md5" + hex.EncodeToString(outer[:])
}

// rawSend writes directly to the socket before the framed stream's opcode
// convention applies — the StartupMessage carries no leading opcode byte,
// unlike every later PostgreSQL message.
func rawSend(c *Connection, payload []byte) error {
	return c.stream.SendRaw(payload)
}
