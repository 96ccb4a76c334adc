// Package capabilities names the MySQL/MariaDB client capability flags the
// handshake negotiates, per https://mariadb.com/kb/en/connection/#capabilities.
package capabilities

const MYSQL = 1
const FOUND_ROWS = 2
const LONG_FLAG = 4
const CONNECT_WITH_DB = 8
const NO_SCHEMA = 1 << 4
const COMPRESS = 1 << 5
const LOCAL_FILES = 1 << 7
const IGNORE_SPACE = 1 << 8
const PROTOCOL_41 = 1 << 9
const INTERACTIVE = 1 << 10
const SSL = 1 << 11
const TRANSACTIONS = 1 << 13
const SECURE_CONNECTION = 1 << 15
const MULTI_STATEMENTS = 1 << 16
const MULTI_RESULTS = 1 << 17
const PS_MULTI_RESULTS = 1 << 18

// PLUGIN_AUTH marks client support for a named authentication plugin
// (mysql_native_password, caching_sha2_password) rather than a fixed scheme.
const PLUGIN_AUTH = 1 << 19
const CONNECT_ATTRS = 1 << 20

// PLUGIN_AUTH_LENENC_CLIENT_DATA lets the auth response exceed 255 bytes,
// needed for caching_sha2_password's RSA-encrypted full-auth response.
const PLUGIN_AUTH_LENENC_CLIENT_DATA = 1 << 21
const SESSION_TRACK = 1 << 23

// DEPRECATE_EOF tells the server it may end a column-definition or row
// stream with an OK packet instead of the legacy EOF packet.
const DEPRECATE_EOF = 1 << 24

// DEFAULT is the capability set this client always requests.
var DEFAULT uint64 = FOUND_ROWS |
	IGNORE_SPACE |
	PROTOCOL_41 |
	TRANSACTIONS |
	SECURE_CONNECTION |
	MULTI_RESULTS |
	PS_MULTI_RESULTS |
	PLUGIN_AUTH_LENENC_CLIENT_DATA |
	SESSION_TRACK
