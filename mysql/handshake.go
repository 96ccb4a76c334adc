package mysql

import (
	"crypto/sha1"
	"crypto/sha256"

	"github.com/scorpion-framework/shark/dberr"
	"github.com/scorpion-framework/shark/mysql/capabilities"
	"github.com/scorpion-framework/shark/wire"
)

type handshakeRequest struct {
	protocolVersion  uint8
	serverVersion    string
	connectionID     uint32
	scramble         []byte
	capabilities     uint64
	collation        uint8
	pluginDataLength uint8
	pluginName       string
}

// handshake parses the server's Handshake v10 packet, sends a
// HandshakeResponse41 with the negotiated auth token, and drives the
// exchange through to the final OK packet.
func (c *Connection) handshake() error {
	body, err := c.recv()
	if err != nil {
		return err
	}

	req, err := parseHandshakeRequest(body)
	if err != nil {
		return err
	}
	c.serverCapabilities = req.capabilities

	authToken, plugin, err := computeAuthToken(req.pluginName, c.cfg.Password, req.scramble)
	if err != nil {
		return err
	}

	response := buildHandshakeResponse(req, c.cfg, authToken, plugin)
	c.stream.ResetSequence()
	if err := c.rawSequencedSend(response); err != nil {
		return err
	}

	return c.finishAuth()
}

// finishAuth reads the post-handshake response: OK, ERR, an Authentication
// Switch Request ('0xfe'), or caching_sha2_password's fast/full-auth
// signal ('0x01').
func (c *Connection) finishAuth() error {
	body, err := c.recv()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return dberr.NewConnection("mysql: empty auth response")
	}

	switch body[0] {
	case packetTypeOK:
		return nil
	case packetTypeERR:
		return parseErrPacket(body)
	case 0x01:
		// caching_sha2_password status: 0x03 fast-auth success (OK follows),
		// 0x04 full authentication requested.
		if len(body) >= 2 && body[1] == 0x03 {
			return c.finishAuth()
		}
		return dberr.NewConnection("mysql: caching_sha2_password full authentication requires TLS or RSA key exchange, unsupported")
	case 0xfe:
		return dberr.NewConnection("mysql: authentication switch request is unsupported")
	default:
		return dberr.NewConnection("mysql: unexpected packet during authentication")
	}
}

func parseHandshakeRequest(body []byte) (*handshakeRequest, error) {
	buf := wire.NewBuffer(body)
	req := &handshakeRequest{}

	protocolVersion, err := buf.ReadByte()
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.protocolVersion = protocolVersion

	serverVersion, err := buf.ReadZeroTerminatedString()
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.serverVersion = serverVersion

	connID, err := buf.ReadUint32(wire.LittleEndian)
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.connectionID = connID

	scramble1, err := buf.ReadBytes(8)
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.scramble = scramble1
	buf.Skip(1) // filler

	capLow, err := buf.ReadUint16(wire.LittleEndian)
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.capabilities = uint64(capLow)

	collation, err := buf.ReadByte()
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.collation = collation

	buf.Skip(2) // status flags

	capHigh, err := buf.ReadUint16(wire.LittleEndian)
	if err != nil {
		return nil, dberr.WrapConnection("mysql: malformed handshake", err)
	}
	req.capabilities += uint64(capHigh) << 16

	if req.capabilities&capabilities.PLUGIN_AUTH != 0 {
		pluginDataLength, _ := buf.ReadByte()
		req.pluginDataLength = pluginDataLength
	} else {
		buf.Skip(1)
	}

	buf.Skip(6)
	if req.capabilities&capabilities.MYSQL != 0 {
		buf.Skip(4)
	} else {
		capExt, _ := buf.ReadUint32(wire.LittleEndian)
		req.capabilities += uint64(capExt) << 32
	}

	if req.capabilities&capabilities.SECURE_CONNECTION != 0 {
		length := int(req.pluginDataLength) - 9
		if length < 12 {
			length = 12
		}
		scramble2, err := buf.ReadBytes(length)
		if err != nil {
			return nil, dberr.WrapConnection("mysql: malformed handshake", err)
		}
		req.scramble = append(req.scramble, scramble2...)
		buf.Skip(1)
	}

	if req.capabilities&capabilities.PLUGIN_AUTH != 0 {
		pluginName, err := buf.ReadZeroTerminatedString()
		if err == nil {
			req.pluginName = pluginName
		}
	}

	return req, nil
}

func buildHandshakeResponse(req *handshakeRequest, cfg Config, authToken []byte, plugin string) []byte {
	clientCaps := capabilities.DEFAULT
	if req.capabilities&capabilities.PLUGIN_AUTH != 0 {
		clientCaps |= capabilities.PLUGIN_AUTH
	}
	if cfg.Database != "" && req.capabilities&capabilities.CONNECT_WITH_DB != 0 {
		clientCaps |= capabilities.CONNECT_WITH_DB
	}

	buf := wire.NewWriteBuffer()
	buf.WriteUint32(uint32(clientCaps&0xffffffff), wire.LittleEndian)
	buf.WriteUint32(16*1024*1024, wire.LittleEndian) // max packet size
	buf.WriteByte(req.collation)
	for i := 0; i < 19; i++ {
		buf.WriteByte(0)
	}
	buf.WriteUint32(uint32(clientCaps>>32), wire.LittleEndian)
	buf.WriteBytes([]byte(cfg.Username))
	buf.WriteByte(0)

	switch {
	case req.capabilities&capabilities.PLUGIN_AUTH_LENENC_CLIENT_DATA != 0:
		writeLengthEncodedInt(buf, uint64(len(authToken)))
		buf.WriteBytes(authToken)
	case req.capabilities&capabilities.SECURE_CONNECTION != 0:
		buf.WriteByte(byte(len(authToken)))
		buf.WriteBytes(authToken)
	default:
		buf.WriteBytes(authToken)
		buf.WriteByte(0)
	}

	if clientCaps&capabilities.CONNECT_WITH_DB != 0 {
		buf.WriteBytes([]byte(cfg.Database))
		buf.WriteByte(0)
	}
	if req.capabilities&capabilities.PLUGIN_AUTH != 0 {
		buf.WriteBytes([]byte(plugin))
		buf.WriteByte(0)
	}
	if req.capabilities&capabilities.CONNECT_ATTRS != 0 {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

// computeAuthToken hashes the configured password per the plugin the
// server announced: mysql_native_password's single SHA-1 scramble, or
// caching_sha2_password's SHA-256 scramble.
func computeAuthToken(pluginName, password string, scramble []byte) ([]byte, string, error) {
	switch pluginName {
	case "", "mysql_native_password":
		return nativePasswordHash(password, scramble), "mysql_native_password", nil
	case "caching_sha2_password":
		return sha2PasswordHash(password, scramble), "caching_sha2_password", nil
	default:
		return nil, "", dberr.NewConnection("mysql: unsupported authentication plugin " + pluginName)
	}
}

// nativePasswordHash implements mysql_native_password:
// SHA1(password) XOR SHA1(scramble + SHA1(SHA1(password))).
func nativePasswordHash(password string, scramble []byte) []byte {
	if password == "" {
		return nil
	}
	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])

	h := sha1.New()
	h.Write(scramble)
	h.Write(stage2[:])
	digest := h.Sum(nil)

	for i := range digest {
		digest[i] ^= stage1[i]
	}
	return digest
}

// sha2PasswordHash implements caching_sha2_password's fast-auth scramble:
// SHA256(password) XOR SHA256(SHA256(SHA256(password)) + scramble).
func sha2PasswordHash(password string, scramble []byte) []byte {
	if password == "" {
		return nil
	}
	stage1 := sha256.Sum256([]byte(password))
	stage2 := sha256.Sum256(stage1[:])

	h := sha256.New()
	h.Write(stage2[:])
	h.Write(scramble)
	digest := h.Sum(nil)

	for i := range digest {
		digest[i] ^= stage1[i]
	}
	return digest
}

func writeLengthEncodedInt(buf *wire.Buffer, v uint64) {
	switch {
	case v < 0xfb:
		buf.WriteByte(byte(v))
	case v < 1<<16:
		buf.WriteByte(0xfc)
		buf.WriteUint16(uint16(v), wire.LittleEndian)
	case v < 1<<24:
		buf.WriteByte(0xfd)
		buf.WriteUint24LE(uint32(v))
	default:
		buf.WriteByte(0xfe)
		buf.WriteBytes(uint64LE(v))
	}
}

func uint64LE(v uint64) []byte {
	out := make([]byte, 8)
	for i := range out {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// rawSequencedSend writes payload through the framed stream without a
// leading opcode byte — HandshakeResponse41 carries none, unlike COM_*
// command packets which embed their own command byte as the first payload
// byte.
func (c *Connection) rawSequencedSend(payload []byte) error {
	return c.stream.Send(0, payload)
}
