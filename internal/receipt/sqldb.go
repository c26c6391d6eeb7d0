package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // register mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
)

// Dialect selects the SQL driver and placeholder style
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func (d Dialect) driver() (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectMySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported sql dialect %q", d)
}

// SQLOptions controls the connection pool
type SQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultSQLOptions returns pool defaults for a long-running server
func DefaultSQLOptions() SQLOptions {
	return SQLOptions{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// SQLDB implements the DB interface on a relational store.
// The receipts table is created ahead of time:
//
//	CREATE TABLE receipts (
//		id               VARCHAR(64) PRIMARY KEY,
//		transaction_date VARCHAR(64) NOT NULL,
//		amount           VARCHAR(64) NOT NULL,
//		vat              VARCHAR(64) NOT NULL,
//		filename         VARCHAR(255) NOT NULL,
//		content_type     VARCHAR(128) NOT NULL,
//		created_at       TIMESTAMP NOT NULL
//	);
type SQLDB struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects to the database and verifies connectivity
func OpenSQL(ctx context.Context, dialect Dialect, dsn string, opts SQLOptions) (*SQLDB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return NewSQLDB(db, dialect), nil
}

// NewSQLDB wraps an open connection pool
func NewSQLDB(db *sql.DB, dialect Dialect) *SQLDB {
	return &SQLDB{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders as $n for postgres
func (s *SQLDB) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const receiptColumns = "id, transaction_date, amount, vat, filename, content_type, created_at"

// SaveReceipt inserts a receipt row
func (s *SQLDB) SaveReceipt(ctx context.Context, r *Receipt) error {
	q := s.rebind("INSERT INTO receipts (" + receiptColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, q, r.ID, r.TransactionDate, r.Amount, r.VAT, r.Filename, r.ContentType, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting receipt: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*Receipt, error) {
	var r Receipt
	if err := row.Scan(&r.ID, &r.TransactionDate, &r.Amount, &r.VAT, &r.Filename, &r.ContentType, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReceipt retrieves a receipt by ID
func (s *SQLDB) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	q := s.rebind("SELECT " + receiptColumns + " FROM receipts WHERE id = ?")
	r, err := scanReceipt(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying receipt: %w", err)
	}
	return r, nil
}

// ListReceipts returns all receipts, oldest first
func (s *SQLDB) ListReceipts(ctx context.Context) ([]*Receipt, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+receiptColumns+" FROM receipts ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("querying receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt row
func (s *SQLDB) DeleteReceipt(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM receipts WHERE id = ?"), id); err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *SQLDB) Close() error {
	return s.db.Close()
}
