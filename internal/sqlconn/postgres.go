package sqlconn

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// postgresConn backs Conn for the PostgreSQL-family dialect, used for
// PostgreSQL-speaking Accelerators and Routers. lib/pq is blank-imported
// alongside pgx/stdlib, mirroring the teacher's database.go: it registers
// the database/sql "postgres" driver name some Accelerator deployments'
// connection strings still reference, even though pool traffic runs
// through pgx/v5 directly.
type postgresConn struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, p Params) (Conn, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=require connect_timeout=5",
		p.Host, p.Port, p.User, p.Password, p.Database,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: postgres config %s:%d: %w", p.Host, p.Port, err)
	}

	// Relaxed-verification TLS option (§4.1): Accelerator deployments are
	// frequently reached over a private network with a self-signed or
	// otherwise unverifiable certificate.
	if poolConfig.ConnConfig.TLSConfig != nil {
		poolConfig.ConnConfig.TLSConfig.InsecureSkipVerify = true
	}

	connectCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: postgres connect %s:%d: %w", p.Host, p.Port, err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlconn: postgres ping %s:%d: %w", p.Host, p.Port, err)
	}

	return &postgresConn{pool: pool}, nil
}

func (c *postgresConn) Query(ctx context.Context, query string) (Rows, error) {
	queryCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	rows, err := c.pool.Query(queryCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out Rows
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = stringifyValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *postgresConn) QueryFirst(ctx context.Context, query string) (Row, error) {
	rows, err := c.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *postgresConn) QueryDrop(ctx context.Context, query string) error {
	queryCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	_, err := c.pool.Exec(queryCtx, query)
	return err
}

func (c *postgresConn) Close() error {
	c.pool.Close()
	return nil
}
