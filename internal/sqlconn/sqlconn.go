// Package sqlconn is the scheduler's thin dialect-parameterised SQL client
// (§4.1). It offers query/query_first/query_drop over two wire protocols —
// MySQL-family via go-sql-driver/mysql and jmoiron/sqlx, PostgreSQL-family
// via jackc/pgx/v5 — behind a single Conn interface so the rest of the
// scheduler never sees a dialect-specific row type, following the teacher's
// database.Database wrapper shape (one constructor per dialect, timeouts
// baked into the pool config, a narrow method set above the driver).
package sqlconn

import (
	"context"
	"fmt"
	"time"
)

// Dialect selects which wire protocol a Conn speaks.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
)

// Timeout is applied to connect, read, and write operations (§4.1).
const Timeout = 5 * time.Second

// Row is a single uniform, string-addressable result row. Numeric columns
// are parsed by the caller; the abstraction never leaks a dialect-specific
// row type above this layer.
type Row map[string]string

// Rows is a sequence of Row, already fully materialised — the scheduler's
// result sets are always small (server lists, rule lists, one page of
// candidates), so there is no benefit to a streaming cursor here.
type Rows []Row

// Conn is the dialect-independent connection contract every component
// above this package programs against.
type Conn interface {
	// Query runs sql and returns every resulting row.
	Query(ctx context.Context, sql string) (Rows, error)
	// QueryFirst runs sql and returns its first row, or nil if it produced
	// no rows.
	QueryFirst(ctx context.Context, sql string) (Row, error)
	// QueryDrop runs sql for its side effects and discards any result set.
	QueryDrop(ctx context.Context, sql string) error
	// Close releases the underlying connection or pool.
	Close() error
}

// Params names the endpoint and credentials Open needs to establish a Conn.
type Params struct {
	Dialect  Dialect
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Open establishes a Conn for the requested dialect with Timeout applied to
// connect, read, and write. For PostgreSQL-family connections TLS is
// permitted with a relaxed-verification option, matching the Accelerator
// deployments the scheduler talks to in practice.
func Open(ctx context.Context, p Params) (Conn, error) {
	switch p.Dialect {
	case MySQL:
		return openMySQL(ctx, p)
	case PostgreSQL:
		return openPostgres(ctx, p)
	default:
		return nil, fmt.Errorf("sqlconn: unrecognized dialect %q", p.Dialect)
	}
}
