// Package shark is a native database connector: a backend-independent
// schema/CRUD translator (package schema) driven by either of two concrete
// wire-protocol clients (packages postgresql and mysql), joined here into
// one generic public API keyed by a declared entity type.
//
// Connect to PostgreSQL or MySQL/MariaDB, declare an entity with struct
// tags, and call Init/Select/Insert/Update/Delete against it:
//
//	type Account struct {
//		AccountID int    `db:"primary_key,auto_increment"`
//		Email     string `db:"not_null,unique,length=255"`
//	}
//	func (Account) TableName() string { return "account" }
//
//	db, err := shark.ConnectPostgres(ctx, shark.PostgresConfig{Host: "localhost", Database: "app", Username: "app"})
//	shark.Init[Account](db)
//	rows, err := shark.Select[Account](db, nil, nil, nil)
package shark

import (
	"context"
	"log"

	"github.com/scorpion-framework/shark/bind"
	"github.com/scorpion-framework/shark/entity"
	"github.com/scorpion-framework/shark/mysql"
	"github.com/scorpion-framework/shark/postgresql"
	"github.com/scorpion-framework/shark/schema"
	"github.com/scorpion-framework/shark/where"
)

// PostgresConfig is postgresql.Config, re-exported so callers only import
// the root package for the common case.
type PostgresConfig = postgresql.Config

// MySQLConfig is mysql.Config, re-exported for the same reason.
type MySQLConfig = mysql.Config

// Database wraps one live backend connection behind the schema.Backend
// capability set the translator (package schema) drives. Not safe for
// concurrent use — every wire backend is a single blocking socket.
type Database struct {
	backend schema.Backend
	closer  func() error
	state   func() int

	Logger *log.Logger
}

// ConnectPostgres dials a PostgreSQL server and readies it for use.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig) (*Database, error) {
	conn, err := postgresql.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Database{
		backend: conn,
		closer:  conn.Close,
		state:   func() int { return int(conn.State()) },
		Logger:  conn.Logger,
	}, nil
}

// ConnectMySQL dials a MySQL or MariaDB server and readies it for use.
func ConnectMySQL(ctx context.Context, cfg MySQLConfig) (*Database, error) {
	conn, err := mysql.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Database{
		backend: conn,
		closer:  conn.Close,
		state:   func() int { return int(conn.State()) },
		Logger:  conn.Logger,
	}, nil
}

// Close releases the underlying connection.
func (db *Database) Close() error {
	return db.closer()
}

// State reports the backend-specific connection lifecycle state as an int;
// callers that care about the exact enum use postgresql.State /
// mysql.State directly against their own connection.
func (db *Database) State() int {
	return db.state()
}

// Init creates T's table if missing, or reconciles it column-by-column
// against the live schema.
func Init[T entity.Entity](db *Database) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.Init(db.backend, spec)
}

// Select runs a SELECT against T's table with the given WHERE/ORDER/LIMIT
// clauses (any of which may be nil) and binds the rows into []T.
func Select[T entity.Entity](db *Database, wh *where.Where, order *where.Order, limit *where.Limit) ([]T, error) {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return nil, err
	}
	result, err := schema.Select(db.backend, spec.TableName, nil, wh, order, limit)
	if err != nil {
		return nil, err
	}
	return bindTyped[T](spec, result)
}

// SelectOne runs Select and returns the first matching row, or ok=false
// when none matched.
func SelectOne[T entity.Entity](db *Database, wh *where.Where) (result T, ok bool, err error) {
	rows, err := Select[T](db, wh, nil, where.NewLimit(1))
	if err != nil {
		return result, false, err
	}
	if len(rows) == 0 {
		return result, false, nil
	}
	return rows[0], true, nil
}

// SelectID fetches the single row matching e's primary key fields.
func SelectID[T entity.Entity](db *Database, e T) (result T, ok bool, err error) {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return result, false, err
	}
	res, err := schema.SelectByID(db.backend, spec, e)
	if err != nil {
		return result, false, err
	}
	rows, err := bindTyped[T](spec, res)
	if err != nil {
		return result, false, err
	}
	if len(rows) == 0 {
		return result, false, nil
	}
	return rows[0], true, nil
}

// Insert writes e's populated fields into its table. When updateId is
// true and the entity declares a primary key, any backend-generated id is
// written back onto e.
func Insert[T entity.Entity](db *Database, e *T, updateId bool) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.Insert(db.backend, spec, any(e).(entity.Entity), updateId)
}

// Update applies assignments to rows matching wh. A nil/empty wh updates
// every row and is logged as a warning, same as schema.Update.
func Update[T entity.Entity](db *Database, assignments map[string]any, wh *where.Where) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.Update(db.backend, spec, assignments, wh)
}

// UpdateID applies assignments to the single row matching e's primary key.
func UpdateID[T entity.Entity](db *Database, e *T, assignments map[string]any) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.UpdateByID(db.backend, spec, any(e).(entity.Entity), assignments)
}

// Delete removes rows matching wh from T's table.
func Delete[T entity.Entity](db *Database, wh *where.Where) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.Delete(db.backend, spec.TableName, wh)
}

// DeleteID removes the single row matching e's primary key.
func DeleteID[T entity.Entity](db *Database, e *T) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.DeleteByID(db.backend, spec, any(e).(entity.Entity))
}

// Drop unconditionally drops T's table.
func Drop[T entity.Entity](db *Database) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.Drop(db.backend, spec.TableName)
}

// DropIfExists drops T's table only if it currently exists.
func DropIfExists[T entity.Entity](db *Database) error {
	spec, err := entity.Reflect[T]()
	if err != nil {
		return err
	}
	return schema.DropIfExists(db.backend, spec.TableName)
}

func bindTyped[T entity.Entity](spec *entity.TableSpec, result *bind.Result) ([]T, error) {
	entities, err := bind.BindAll(spec, result)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(entities))
	for i, e := range entities {
		out[i] = *(any(e).(*T))
	}
	return out, nil
}
