package sqlconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// mysqlConn backs Conn for the MySQL-family dialect. Both the Router's admin
// interface and a MySQL-speaking Accelerator use this path.
type mysqlConn struct {
	db *sqlx.DB
}

func openMySQL(ctx context.Context, p Params) (Conn, error) {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, p.Port)
	cfg.DBName = p.Database
	cfg.Timeout = Timeout
	cfg.ReadTimeout = Timeout
	cfg.WriteTimeout = Timeout
	cfg.ParseTime = true

	db, err := sqlx.Connect("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("sqlconn: mysql connect %s:%d: %w", p.Host, p.Port, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlconn: mysql ping %s:%d: %w", p.Host, p.Port, err)
	}

	return &mysqlConn{db: db}, nil
}

func (c *mysqlConn) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out Rows
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, stringifyRow(m))
	}
	return out, rows.Err()
}

func (c *mysqlConn) QueryFirst(ctx context.Context, query string) (Row, error) {
	rows, err := c.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *mysqlConn) QueryDrop(ctx context.Context, query string) error {
	_, err := c.db.ExecContext(ctx, query)
	return err
}

func (c *mysqlConn) Close() error {
	return c.db.Close()
}

func stringifyRow(m map[string]interface{}) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = stringifyValue(v)
	}
	return row
}

func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case sql.NullString:
		if val.Valid {
			return val.String
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
